package language

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// sampleSize caps how much text is fed to the detector; long inputs add
// latency without improving accuracy.
const sampleSize = 4000

// switchThreshold is the number of consecutive dissenting detections
// required before the active language changes. A single noisy detection
// never flips the channel.
const switchThreshold = 2

var names = map[string]string{
	"ko":    "Korean",
	"en":    "English",
	"ja":    "Japanese",
	"zh-cn": "Chinese (Simplified)",
	"zh-tw": "Chinese (Traditional)",
	"fr":    "French",
	"de":    "German",
	"es":    "Spanish",
}

// eastAsian lists the codes routed to the alternate model.
var eastAsian = map[string]bool{
	"ko":    true,
	"ja":    true,
	"zh-cn": true,
	"zh-tw": true,
}

type state struct {
	lang   string
	streak int
}

// Tracker detects the language of incoming messages and keeps a
// per-channel hysteresis state deciding the active response language.
// It is an explicit instance, not process-global state, so tests and
// sharded workers can each own one.
type Tracker struct {
	mu          sync.Mutex
	detector    lingua.LanguageDetector
	defaultLang string
	primary     string
	alt         string
	states      map[string]*state
}

func New(defaultLang, primaryModel, altModel string) *Tracker {
	return &Tracker{
		defaultLang: defaultLang,
		primary:     primaryModel,
		alt:         altModel,
		states:      make(map[string]*state),
	}
}

// Initialize builds the lingua detector over the supported candidate
// set. Building loads the language models, so it happens once here and
// not per request.
func (t *Tracker) Initialize(ctx context.Context) error {
	t.detector = lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.Korean,
			lingua.English,
			lingua.Japanese,
			lingua.Chinese,
			lingua.French,
			lingua.German,
			lingua.Spanish,
		).
		Build()
	log.Printf("✅ language detector ready (default=%s)", t.defaultLang)
	return nil
}

func (t *Tracker) Cleanup(ctx context.Context) error {
	return nil
}

// Detect classifies text into a language code. Empty input, an unready
// detector and classifier failure all fall back to the default language;
// detection is never an error.
func (t *Tracker) Detect(text string) string {
	if strings.TrimSpace(text) == "" || t.detector == nil {
		return t.defaultLang
	}
	sample := []rune(text)
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	lang, ok := t.detector.DetectLanguageOf(string(sample))
	if !ok {
		return t.defaultLang
	}
	code := strings.ToLower(lang.IsoCode639_1().String())
	if strings.HasPrefix(code, "zh") {
		return "zh-cn"
	}
	return code
}

// Decide applies hysteresis to the latest detection for a channel and
// returns the active language. The language switches only after
// switchThreshold consecutive detections disagree with it; a matching
// detection resets the streak.
func (t *Tracker) Decide(channelID, latest string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[channelID]
	if !ok {
		st = &state{lang: t.defaultLang}
		t.states[channelID] = st
	}
	if latest == st.lang {
		st.streak = 0
		return st.lang
	}
	st.streak++
	if st.streak >= switchThreshold {
		log.Printf("🔄 language switch: channel=%s %s→%s", channelID, st.lang, latest)
		st.lang = latest
		st.streak = 0
	}
	return st.lang
}

// State reports the current hysteresis state for a channel.
func (t *Tracker) State(channelID string) (lang string, streak int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.states[channelID]; ok {
		return st.lang, st.streak
	}
	return t.defaultLang, 0
}

// Model picks the completion model for a language. East-Asian languages
// go to the alternate model, everything else to the primary.
func (t *Tracker) Model(code string) string {
	if eastAsian[code] {
		return t.alt
	}
	return t.primary
}

// Name returns the human-readable language name for a code.
func Name(code string) string {
	if n, ok := names[code]; ok {
		return n
	}
	return fmt.Sprintf("unknown (%s)", code)
}

// SystemPrompt builds the language directive block appended to the
// persona prompt.
func SystemPrompt(code string) string {
	name := Name(code)
	return fmt.Sprintf(`Language instructions:
1) Always answer in %[1]s. Even for mixed-language input, keep the final answer entirely in %[1]s.
2) Avoid literal translation; use natural %[1]s phrasing.
3) Do not guess: clearly mark uncertain statements as uncertain.
4) Keep code, commands and error messages verbatim, but explain them in %[1]s.
5) Avoid unnecessary foreign-language text; proper nouns may be given in parentheses.
6) Keep a concise, friendly tone suited to Discord chat.

Current response language: %[1]s`, name)
}
