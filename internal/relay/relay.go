package relay

import (
	"context"
	"log"
	"strings"
	"time"

	"libra-ai-worker/internal/cache"
	"libra-ai-worker/internal/history"
	"libra-ai-worker/internal/language"
	"libra-ai-worker/internal/llm"
	"libra-ai-worker/internal/prompt"
	"libra-ai-worker/internal/storage"
)

// fallbackResponse replaces a completion that arrived empty or
// whitespace-only. The worker speaks Korean by default; this is its
// "understood" acknowledgement.
const fallbackResponse = "네, 알겠습니다."

// Request is one normalized inbound chat message.
type Request struct {
	UserID    string
	Username  string
	ChannelID string
	GuildID   string
	MessageID string
	Content   string
}

// Event is one client-visible stream frame. Exactly one field is set.
type Event struct {
	Content  string `json:"content,omitempty"`
	Error    string `json:"error,omitempty"`
	Finished bool   `json:"finished,omitempty"`
}

// Relay drives one chat request end to end: language decision, cache
// lookup, prompt assembly, the provider token stream with reasoning
// filtering, and the write-back of the assistant turn.
type Relay struct {
	history      *history.Store
	cache        *cache.Cache
	languages    *language.Tracker
	provider     llm.Streamer
	recorder     storage.Recorder
	persona      string
	historyLimit int
}

// New assembles a relay. recorder may be nil, in which case completed
// exchanges are not logged.
func New(hist *history.Store, c *cache.Cache, langs *language.Tracker, provider llm.Streamer, recorder storage.Recorder, persona string, historyLimit int) *Relay {
	return &Relay{
		history:      hist,
		cache:        c,
		languages:    langs,
		provider:     provider,
		recorder:     recorder,
		persona:      persona,
		historyLimit: historyLimit,
	}
}

// Run starts the request as its own task and returns the event stream.
// The channel is closed when the request terminates; cancelling ctx
// stops forwarding promptly.
func (r *Relay) Run(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		r.run(ctx, req, out)
	}()
	return out
}

func (r *Relay) run(ctx context.Context, req Request, out chan<- Event) {
	code := r.languages.Decide(req.ChannelID, r.languages.Detect(req.Content))
	model := r.languages.Model(code)
	userMsg := llm.Message{Role: "user", Content: req.Content}

	key := history.Key{ChannelID: req.ChannelID, UserID: req.UserID}
	fingerprint := cache.Key([]llm.Message{userMsg}, model, req.UserID)
	if cached, ok := r.cache.Lookup(ctx, fingerprint); ok {
		if emit(ctx, out, Event{Content: cached}) {
			// Replayed exchanges still land in conversation memory so
			// later prompts see what the user actually said.
			r.history.Append(ctx, key, history.Turn{
				Role:      "user",
				Content:   req.Content,
				Username:  req.Username,
				MessageID: req.MessageID,
			})
			r.history.Append(ctx, key, history.Turn{
				Role:      "assistant",
				Content:   cached,
				Username:  "assistant",
				MessageID: req.MessageID + "_response",
			})
			r.record(req, model, code, cached, true)
			emit(ctx, out, Event{Finished: true})
		}
		return
	}

	past := r.history.Recent(ctx, key, r.historyLimit)
	hist := make([]llm.Message, 0, len(past))
	for _, t := range past {
		hist = append(hist, llm.Message{Role: t.Role, Content: t.Content})
	}
	r.history.Append(ctx, key, history.Turn{
		Role:      "user",
		Content:   req.Content,
		Username:  req.Username,
		MessageID: req.MessageID,
	})

	system := prompt.Compose(r.persona, language.SystemPrompt(code))
	messages := prompt.Build(system, hist, userMsg)
	log.Printf("🚀 relaying completion: model=%s lang=%s messages=%d channel=%s", model, code, len(messages), req.ChannelID)

	chunks, err := r.provider.Stream(ctx, model, messages)
	if err != nil {
		log.Printf("❌ provider request failed: %v", err)
		emit(ctx, out, Event{Error: err.Error()})
		return
	}

	var visible strings.Builder
	var filter reasoningFilter
	for chunk := range chunks {
		if chunk.Err != nil {
			log.Printf("❌ provider stream error: %v", chunk.Err)
			emit(ctx, out, Event{Error: chunk.Err.Error()})
			return
		}
		if chunk.Content != "" {
			if show := filter.feed(chunk.Content); show != "" {
				visible.WriteString(show)
				if !emit(ctx, out, Event{Content: show}) {
					return
				}
			}
		}
		if chunk.Finished {
			r.finish(ctx, req, key, fingerprint, model, code, &visible, &filter, out)
			return
		}
	}
	// Stream ended without a terminal chunk (cancelled or drained):
	// nothing is persisted.
	log.Printf("⚠️ stream ended without completion: channel=%s", req.ChannelID)
}

func (r *Relay) finish(ctx context.Context, req Request, key history.Key, fingerprint, model, code string, visible *strings.Builder, filter *reasoningFilter, out chan<- Event) {
	if tail := filter.flush(); tail != "" {
		visible.WriteString(tail)
		if !emit(ctx, out, Event{Content: tail}) {
			return
		}
	}
	final := visible.String()
	if strings.TrimSpace(final) == "" {
		log.Printf("⚠️ provider returned an empty response, sending fallback")
		final = fallbackResponse
		if !emit(ctx, out, Event{Content: final}) {
			return
		}
	}

	r.history.Append(ctx, key, history.Turn{
		Role:      "assistant",
		Content:   final,
		Username:  "assistant",
		MessageID: req.MessageID + "_response",
	})
	r.cache.Store(ctx, fingerprint, final, 0)
	r.record(req, model, code, final, false)
	emit(ctx, out, Event{Finished: true})
}

// record appends the exchange to the interaction log. Logging failures
// never affect the response.
func (r *Relay) record(req Request, model, code, response string, cached bool) {
	if r.recorder == nil {
		return
	}
	err := r.recorder.AppendInteraction(storage.Event{
		Timestamp:         time.Now().UTC(),
		UserID:            req.UserID,
		ChannelID:         req.ChannelID,
		Model:             model,
		Lang:              code,
		Cached:            cached,
		UserMessage:       req.Content,
		AssistantResponse: response,
	})
	if err != nil {
		log.Printf("⚠️ failed to record interaction: %v", err)
	}
}

func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
