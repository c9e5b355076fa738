package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Sampling parameters sent with every completion request, matching the
// worker's tuned defaults.
const (
	topP             = 0.9
	frequencyPenalty = 0.1
	presencePenalty  = 0.1
)

// OpenAIClient talks to any OpenAI-compatible completion endpoint
// (Groq, OpenRouter, OpenAI itself). The model is chosen per request.
type OpenAIClient struct {
	client      *openai.Client
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

type headerTransport struct {
	rt      http.RoundTripper
	headers http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone request to avoid mutating the original
	cl := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			cl.Header.Add(k, v)
		}
	}
	return t.rt.RoundTrip(cl)
}

func NewOpenAI(apiKey, baseURL, referrer, title string, maxTokens int, temperature float64, timeout time.Duration) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	// Inject optional headers (useful for OpenRouter)
	if referrer != "" || title != "" {
		h := http.Header{}
		if referrer != "" {
			h.Set("HTTP-Referer", referrer)
		}
		if title != "" {
			h.Set("X-Title", title)
		}
		base := http.DefaultTransport
		config.HTTPClient = &http.Client{Transport: headerTransport{rt: base, headers: h}}
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(config),
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		timeout:     timeout,
	}
}

// Initialize probes the provider's model listing. A failed probe is only
// logged: the provider may still serve completions, and per-request
// errors surface on their own.
func (c *OpenAIClient) Initialize(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	models, err := c.client.ListModels(probeCtx)
	if err != nil {
		log.Printf("⚠️ provider connection probe failed: %v", err)
		return nil
	}
	log.Printf("✅ provider reachable (%d models)", len(models.Models))
	return nil
}

func (c *OpenAIClient) Cleanup(ctx context.Context) error {
	return nil
}

// Stream opens a streaming completion and forwards deltas as Chunks.
// The overall request is bounded by the configured timeout; exceeding it
// surfaces as an error chunk.
func (c *OpenAIClient) Stream(ctx context.Context, model string, messages []Message) (<-chan Chunk, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:            model,
		Messages:         oaMsgs,
		Stream:           true,
		MaxTokens:        c.maxTokens,
		Temperature:      c.temperature,
		TopP:             topP,
		FrequencyPenalty: frequencyPenalty,
		PresencePenalty:  presencePenalty,
	}

	streamCtx, cancel := context.WithTimeout(ctx, c.timeout)
	stream, err := c.client.CreateChatCompletionStream(streamCtx, req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open completion stream: %w", err)
	}

	// Chunks are delivered against the caller's ctx, not streamCtx:
	// streamCtx only bounds the provider exchange, and its expiry must
	// still surface as an error chunk instead of racing a closed Done.
	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer cancel()
		defer func() { _ = stream.Close() }()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				// data: [DONE] without an explicit finish_reason
				send(ctx, out, Chunk{Finished: true})
				return
			}
			if err != nil {
				send(ctx, out, Chunk{Err: err})
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			if choice.Delta.Content != "" {
				if !send(ctx, out, Chunk{Content: choice.Delta.Content}) {
					return
				}
			}
			if choice.FinishReason != "" {
				send(ctx, out, Chunk{Finished: true})
				return
			}
		}
	}()
	return out, nil
}

func send(ctx context.Context, out chan<- Chunk, c Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
