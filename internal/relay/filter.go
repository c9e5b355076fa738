package relay

import "strings"

const (
	openMarker  = "<think>"
	closeMarker = "</think>"
)

// reasoningFilter strips provider reasoning blocks from a token stream.
// Matching runs over the accumulated raw text, not per chunk, so a
// marker split across two chunks is still caught. A trailing fragment
// that could be the start of an opening marker is held back until the
// next chunk decides whether it opens a block or was plain text.
type reasoningFilter struct {
	pending string
	inBlock bool
}

// feed consumes one raw chunk and returns the text safe to show.
func (f *reasoningFilter) feed(chunk string) string {
	f.pending += chunk
	var out strings.Builder
	for {
		if f.inBlock {
			i := strings.Index(f.pending, closeMarker)
			if i < 0 {
				// Still inside the block; keep buffering so a split
				// closing marker is found later.
				return out.String()
			}
			f.pending = f.pending[i+len(closeMarker):]
			f.inBlock = false
			continue
		}
		if i := strings.Index(f.pending, openMarker); i >= 0 {
			out.WriteString(f.pending[:i])
			f.pending = f.pending[i+len(openMarker):]
			f.inBlock = true
			continue
		}
		held := partialMarkerLen(f.pending, openMarker)
		out.WriteString(f.pending[:len(f.pending)-held])
		f.pending = f.pending[len(f.pending)-held:]
		return out.String()
	}
}

// flush releases buffered text that turned out not to be a marker.
// Content inside an unterminated reasoning block stays suppressed.
func (f *reasoningFilter) flush() string {
	if f.inBlock {
		return ""
	}
	out := f.pending
	f.pending = ""
	return out
}

// partialMarkerLen returns the length of the longest suffix of s that is
// a proper prefix of marker.
func partialMarkerLen(s, marker string) int {
	n := len(marker) - 1
	if len(s) < n {
		n = len(s)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return n
		}
	}
	return 0
}
