package llm

import "context"

type Message struct {
	Role    string
	Content string
}

// Chunk is one event from the provider's token stream. Exactly one of
// Content, Finished or Err is meaningful per chunk.
type Chunk struct {
	Content  string
	Finished bool
	Err      error
}

// Streamer drives one streaming completion request. The returned channel
// is closed after the terminal chunk; producers stop promptly when ctx
// is cancelled.
type Streamer interface {
	Stream(ctx context.Context, model string, messages []Message) (<-chan Chunk, error)
}
