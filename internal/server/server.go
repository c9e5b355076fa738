package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"libra-ai-worker/internal/cache"
	"libra-ai-worker/internal/language"
	"libra-ai-worker/internal/relay"
	"libra-ai-worker/internal/storage"
)

// Server exposes the worker's HTTP surface: the streaming chat endpoint
// plus a small diagnostics/admin set for the cache, language state and
// interaction log.
type Server struct {
	relay     *relay.Relay
	cache     *cache.Cache
	languages *language.Tracker
	recorder  storage.Recorder
}

// New assembles the server. recorder may be nil when interaction
// logging is disabled.
func New(r *relay.Relay, c *cache.Cache, langs *language.Tracker, recorder storage.Recorder) *Server {
	return &Server{relay: r, cache: c, languages: langs, recorder: recorder}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /cache/stats", s.handleCacheStats)
	mux.HandleFunc("DELETE /cache", s.handleCacheClear)
	mux.HandleFunc("DELETE /cache/users/{userId}", s.handleCacheClearUser)
	mux.HandleFunc("GET /language/{channelId}", s.handleLanguageState)
	mux.HandleFunc("GET /interactions", s.handleInteractions)
	return mux
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest accepts both the bot's simple content field and the
// standard messages array; normalization happens before the relay runs.
type chatRequest struct {
	Content   string        `json:"content"`
	Messages  []chatMessage `json:"messages"`
	UserID    string        `json:"userId"`
	Username  string        `json:"username"`
	ChannelID string        `json:"channelId"`
	GuildID   string        `json:"guildId"`
	MessageID string        `json:"messageId"`
}

// normalize extracts the user utterance: the content field when set,
// otherwise the content of the last message.
func (r chatRequest) normalize() (string, error) {
	if r.Content != "" {
		return r.Content, nil
	}
	if len(r.Messages) > 0 {
		return r.Messages[len(r.Messages)-1].Content, nil
	}
	return "", fmt.Errorf("either content or messages is required")
}

func (r chatRequest) validate() error {
	var missing []string
	if r.UserID == "" {
		missing = append(missing, "userId")
	}
	if r.Username == "" {
		missing = append(missing, "username")
	}
	if r.ChannelID == "" {
		missing = append(missing, "channelId")
	}
	if r.MessageID == "" {
		missing = append(missing, "messageId")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	content, err := req.normalize()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// SSE headers; X-Accel-Buffering stops nginx from buffering frames.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Printf("❌ streaming not supported by response writer")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	log.Printf("💬 chat stream started: user=%s channel=%s", req.UserID, req.ChannelID)

	events := s.relay.Run(ctx, relay.Request{
		UserID:    req.UserID,
		Username:  req.Username,
		ChannelID: req.ChannelID,
		GuildID:   req.GuildID,
		MessageID: req.MessageID,
		Content:   content,
	})
	for ev := range events {
		select {
		case <-ctx.Done():
			log.Printf("client disconnected: channel=%s", req.ChannelID)
			return
		default:
		}
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.cache.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	n, err := s.cache.InvalidateAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleCacheClearUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	n, err := s.cache.InvalidateUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleLanguageState(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("channelId")
	lang, streak := s.languages.State(channelID)
	writeJSON(w, http.StatusOK, map[string]any{
		"channelId": channelID,
		"lang":      lang,
		"streak":    streak,
	})
}

// handleInteractions returns the tail of the interaction log.
func (s *Server) handleInteractions(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeError(w, http.StatusNotFound, "interaction log disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events, err := s.recorder.LoadInteractions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	if events == nil {
		events = []storage.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":        len(events),
		"interactions": events,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
