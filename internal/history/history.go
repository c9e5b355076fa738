package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"libra-ai-worker/internal/kv"
)

const (
	// maxTurns bounds every conversation list; older turns are trimmed
	// on each append.
	maxTurns = 20

	// keyTTL is refreshed on every append so idle conversations expire.
	keyTTL = time.Hour
)

// Turn is one stored conversation entry. Username and MessageID are
// transport metadata kept for audit; reads only surface role and content.
type Turn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Username  string `json:"username"`
	MessageID string `json:"message_id"`
}

// Key identifies one bounded conversation list.
type Key struct {
	ChannelID string
	UserID    string
}

func (k Key) redisKey() string {
	return fmt.Sprintf("chat:history:%s:%s", k.ChannelID, k.UserID)
}

// Store keeps per-(channel,user) conversation turns in the key-value
// backend. All faults are swallowed: memory is best-effort and must
// never take the chat path down.
type Store struct {
	kv kv.Store
}

func New(store kv.Store) *Store {
	return &Store{kv: store}
}

// Initialize probes the backend. A failed probe is logged and ignored;
// the store simply behaves as empty until the backend comes back.
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.kv.Ping(ctx); err != nil {
		log.Printf("⚠️ history backend unreachable, running without memory: %v", err)
	} else {
		log.Printf("✅ history store ready")
	}
	return nil
}

func (s *Store) Cleanup(ctx context.Context) error {
	return nil
}

// Append pushes a turn to the tail of the conversation, trims the list
// to the last maxTurns entries and refreshes the key TTL.
func (s *Store) Append(ctx context.Context, key Key, turn Turn) {
	raw, err := json.Marshal(turn)
	if err != nil {
		log.Printf("⚠️ failed to encode history turn: %v", err)
		return
	}
	rk := key.redisKey()
	if err := s.kv.ListAppend(ctx, rk, string(raw)); err != nil {
		log.Printf("⚠️ failed to append history turn: %v", err)
		return
	}
	if err := s.kv.ListTrim(ctx, rk, -maxTurns, -1); err != nil {
		log.Printf("⚠️ failed to trim history: %v", err)
	}
	if err := s.kv.Expire(ctx, rk, keyTTL); err != nil {
		log.Printf("⚠️ failed to refresh history ttl: %v", err)
	}
}

// Recent returns the last limit turns, oldest first, with transport
// metadata dropped. Backend faults and malformed entries yield an empty
// or shortened result, never an error.
func (s *Store) Recent(ctx context.Context, key Key, limit int) []Turn {
	if limit <= 0 {
		return nil
	}
	raw, err := s.kv.ListRange(ctx, key.redisKey(), -int64(limit), -1)
	if err != nil {
		log.Printf("⚠️ failed to read history: %v", err)
		return nil
	}
	turns := make([]Turn, 0, len(raw))
	for _, r := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			continue
		}
		turns = append(turns, Turn{Role: t.Role, Content: t.Content})
	}
	return turns
}
