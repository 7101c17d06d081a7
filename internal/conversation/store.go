// Package conversation owns conversation history: retention-capped storage,
// persistence through the durable document store, and the token-budget
// context window applied before each upstream call.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mod-ship/Mod-ai-assistant/internal/models"
	"github.com/mod-ship/Mod-ai-assistant/internal/storage"
	"github.com/mod-ship/Mod-ai-assistant/internal/utils"
)

const (
	placeholderTitle = "New Conversation"
	maxTitleLength   = 50
)

// AppendInput describes one message to append. ID and timestamp are always
// assigned by the store, never by the caller.
type AppendInput struct {
	Content  string
	Role     models.Role
	Model    string
	Metadata *models.MessageMetadata
}

// persistedState is the document written under the conversations key. The
// current marker is persisted but deliberately excluded from Export.
type persistedState struct {
	Conversations []*models.Conversation `json:"conversations"`
	Current       string                 `json:"current,omitempty"`
}

// Store holds all conversations in memory and mirrors every mutation to the
// durable store. Memory is the source of truth; persistence failures are
// logged and the next successful persist catches up.
type Store struct {
	mu               sync.RWMutex
	kv               storage.KV
	logger           *zap.SugaredLogger
	maxConversations int
	maxMessages      int

	conversations map[string]*models.Conversation
	current       string
}

// NewStore loads previously persisted conversations and returns the store.
// A missing document is a fresh start, not an error.
func NewStore(ctx context.Context, kv storage.KV, limits utils.LimitsConfig, logger *zap.SugaredLogger) (*Store, error) {
	maxConversations := limits.MaxConversations
	if maxConversations <= 0 {
		maxConversations = 50
	}
	maxMessages := limits.MaxMessages
	if maxMessages <= 0 {
		maxMessages = 100
	}

	s := &Store{
		kv:               kv,
		logger:           logger,
		maxConversations: maxConversations,
		maxMessages:      maxMessages,
		conversations:    make(map[string]*models.Conversation),
	}

	data, err := kv.Get(ctx, storage.KeyConversations)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return s, nil
		}
		return nil, err
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		logger.Warnw("discarding corrupt conversation document", "error", err)
		return s, nil
	}

	for _, conv := range state.Conversations {
		if conv == nil || conv.ID == "" {
			continue
		}
		s.conversations[conv.ID] = conv
	}
	if _, ok := s.conversations[state.Current]; ok {
		s.current = state.Current
	}

	return s, nil
}

// Create allocates a new conversation bound to model, marks it current, and
// evicts the least-recently-updated conversation if the cap is exceeded.
func (s *Store) Create(ctx context.Context, model string) (*models.Conversation, error) {
	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Title:     placeholderTitle,
		Model:     model,
		Messages:  []models.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.current = conv.ID
	s.evictLocked()
	s.persistLocked(ctx)
	s.mu.Unlock()

	return conv.Clone(), nil
}

// Append records a message. Appending to an unknown conversation id is a
// no-op: the caller may hold a stale reference after an eviction, and the
// UI must not crash over it. The miss is logged so it stays observable.
func (s *Store) Append(ctx context.Context, id string, input AppendInput) error {
	if !input.Role.Valid() {
		return errors.New("conversation: invalid message role")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		s.logger.Warnw("append to unknown conversation ignored", "conversation_id", id)
		return nil
	}

	now := time.Now().UTC()
	msg := models.Message{
		ID:        uuid.NewString(),
		Content:   input.Content,
		Role:      input.Role,
		Timestamp: now,
		Model:     input.Model,
		Metadata:  input.Metadata,
	}

	if len(conv.Messages) == 0 && input.Role == models.RoleUser {
		conv.Title = titleFromContent(input.Content)
	}

	conv.Messages = append(conv.Messages, msg)
	if len(conv.Messages) > s.maxMessages {
		conv.Messages = conv.Messages[len(conv.Messages)-s.maxMessages:]
	}
	conv.UpdatedAt = now

	s.persistLocked(ctx)
	return nil
}

// Get returns a copy of the conversation.
func (s *Store) Get(id string) (*models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// List returns all conversations sorted by UpdatedAt descending.
func (s *Store) List() []*models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// Delete removes a conversation; the current marker is cleared when it
// pointed at the deleted conversation.
func (s *Store) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return
	}
	delete(s.conversations, id)
	if s.current == id {
		s.current = ""
	}
	s.persistLocked(ctx)
}

// SetModel changes the model used for new messages. Past message records
// keep whatever model produced them.
func (s *Store) SetModel(ctx context.Context, id, model string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return false
	}
	conv.Model = model
	s.persistLocked(ctx)
	return true
}

// SetCurrent marks the conversation as current.
func (s *Store) SetCurrent(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return false
	}
	s.current = id
	s.persistLocked(ctx)
	return true
}

// Current returns the current conversation id, if any.
func (s *Store) Current() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != ""
}

// Clear removes all conversations and the current marker.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make(map[string]*models.Conversation)
	s.current = ""
	s.persistLocked(ctx)
}

// Export serializes all conversations, newest first. The current marker is
// not part of the exported payload.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.MarshalIndent(s.sortedLocked(), "", "  ")
}

// Import replaces the entire store with the snapshot. Malformed input leaves
// the store untouched and returns false.
func (s *Store) Import(ctx context.Context, snapshot []byte) bool {
	var conversations []*models.Conversation
	if err := json.Unmarshal(snapshot, &conversations); err != nil {
		return false
	}

	replacement := make(map[string]*models.Conversation, len(conversations))
	for _, conv := range conversations {
		if conv == nil || conv.ID == "" {
			return false
		}
		if _, dup := replacement[conv.ID]; dup {
			return false
		}
		replacement[conv.ID] = conv
	}

	s.mu.Lock()
	s.conversations = replacement
	s.current = ""
	s.persistLocked(ctx)
	s.mu.Unlock()

	return true
}

func (s *Store) sortedLocked() []*models.Conversation {
	result := make([]*models.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		result = append(result, conv.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result
}

// evictLocked drops least-recently-updated conversations until the count is
// within the cap. The current conversation is spared even when an imported
// entry carries a later timestamp, unless it is the only one left.
func (s *Store) evictLocked() {
	for len(s.conversations) > s.maxConversations {
		oldestID := ""
		var oldest time.Time
		for id, conv := range s.conversations {
			if id == s.current {
				continue
			}
			if oldestID == "" || conv.UpdatedAt.Before(oldest) {
				oldestID = id
				oldest = conv.UpdatedAt
			}
		}
		if oldestID == "" {
			oldestID = s.current
			s.current = ""
		}
		delete(s.conversations, oldestID)
	}
}

// persistLocked writes the whole document to the durable store. Failures are
// logged, never raised; memory remains the source of truth.
func (s *Store) persistLocked(ctx context.Context) {
	state := persistedState{
		Conversations: make([]*models.Conversation, 0, len(s.conversations)),
		Current:       s.current,
	}
	for _, conv := range s.conversations {
		state.Conversations = append(state.Conversations, conv)
	}
	sort.Slice(state.Conversations, func(i, j int) bool {
		return state.Conversations[i].ID < state.Conversations[j].ID
	})

	data, err := json.Marshal(state)
	if err != nil {
		s.logger.Errorw("marshal conversation state failed", "error", err)
		return
	}
	if err := s.kv.Set(ctx, storage.KeyConversations, data); err != nil {
		s.logger.Warnw("persist conversations failed", "error", err)
	}
}

func titleFromContent(content string) string {
	title := strings.TrimSpace(content)
	if title == "" {
		return placeholderTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return string([]rune(title)[:maxTitleLength]) + "..."
	}
	return title
}
