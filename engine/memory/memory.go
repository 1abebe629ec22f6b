// Package memory persists chat sessions as JSON files, one per session.
package memory

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a stored conversation.
type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// SessionInfo is the listing view of a session.
type SessionInfo struct {
	ID           string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Store persists sessions under a directory. All operations are safe for
// concurrent use.
type Store struct {
	dir    string
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore opens (or creates) the session directory and loads any existing
// session files. Corrupt files are skipped with a warning.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("memory: create dir: %w", err)
	}
	s := &Store{dir: dir, logger: logger, sessions: make(map[string]*Session)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("memory: read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			logger.Warn("skipping unreadable session file", "file", e.Name(), "error", err)
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil || sess.ID == "" {
			logger.Warn("skipping corrupt session file", "file", e.Name())
			continue
		}
		s.sessions[sess.ID] = &sess
	}
	logger.Info("session store loaded", "dir", dir, "sessions", len(s.sessions))
	return s, nil
}

// CreateSession allocates a new session and persists it.
func (s *Store) CreateSession() (string, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	if err := s.persist(sess); err != nil {
		return "", err
	}
	return sess.ID, nil
}

// AddMessage appends a turn to a session, creating the session on first use
// when the ID is unknown.
func (s *Store) AddMessage(sessionID, role, content string) error {
	now := time.Now().UTC()

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &Session{ID: sessionID, CreatedAt: now}
		s.sessions[sessionID] = sess
	}
	sess.Messages = append(sess.Messages, Message{Role: role, Content: content, Timestamp: now})
	sess.UpdatedAt = now
	s.mu.Unlock()

	return s.persist(sess)
}

// Conversation returns a session's messages, or false when unknown.
func (s *Store) Conversation(sessionID string) ([]Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	out := make([]Message, len(sess.Messages))
	copy(out, sess.Messages)
	return out, true
}

// RecentContext formats the last maxMessages turns of a session for prompt
// injection, one "ROLE: content" line per turn. Unknown or empty sessions
// yield an empty string.
func (s *Store) RecentContext(sessionID string, maxMessages int) string {
	msgs, ok := s.Conversation(sessionID)
	if !ok || len(msgs) == 0 {
		return ""
	}
	if maxMessages > 0 && len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = strings.ToUpper(m.Role) + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

// Sessions lists all stored sessions, most recently updated first.
func (s *Store) Sessions() []SessionInfo {
	s.mu.RLock()
	infos := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		infos = append(infos, SessionInfo{
			ID:           sess.ID,
			CreatedAt:    sess.CreatedAt,
			UpdatedAt:    sess.UpdatedAt,
			MessageCount: len(sess.Messages),
		})
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos
}

// Search returns messages whose content contains the query, case-insensitive,
// across all sessions.
func (s *Store) Search(query string) []Message {
	q := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []Message
	for _, sess := range s.sessions {
		for _, m := range sess.Messages {
			if strings.Contains(strings.ToLower(m.Content), q) {
				hits = append(hits, m)
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Timestamp.Before(hits[j].Timestamp) })
	return hits
}

// Delete removes a session and its file. Unknown IDs are a no-op.
func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("memory: delete session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

// persist writes the session file atomically via a temp file rename.
func (s *Store) persist(sess *Session) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(sess, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("memory: marshal session: %w", err)
	}

	tmp := s.path(sess.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("memory: write session: %w", err)
	}
	if err := os.Rename(tmp, s.path(sess.ID)); err != nil {
		return fmt.Errorf("memory: rename session: %w", err)
	}
	return nil
}
