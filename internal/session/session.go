// Package session persists chat transcripts between tool calls, so a
// conversation with a local model can span many short-lived invocations.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Message is one stored turn of a conversation.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Store loads and extends session transcripts. An unknown session id loads
// as an empty transcript; the session comes into existence on first append.
type Store interface {
	Load(id string) ([]Message, error)
	Append(id string, msgs ...Message) ([]Message, error)
}

// FileStore keeps each session as one JSON file under a directory. Writes go
// through a temp file and rename so a crash never leaves a half-written
// transcript.
type FileStore struct {
	dir string

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sessions directory: %w", err)
	}
	return &FileStore{dir: dir, sessions: make(map[string]*sync.Mutex)}, nil
}

func (s *FileStore) Load(id string) ([]Message, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	return s.read(id)
}

func (s *FileStore) Append(id string, msgs ...Message) ([]Message, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	transcript, err := s.read(id)
	if err != nil {
		return nil, err
	}
	transcript = append(transcript, msgs...)

	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding session %s: %w", id, err)
	}

	path := s.path(id)
	tmp, err := os.CreateTemp(s.dir, ".session-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("writing session %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("closing session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("replacing session %s: %w", id, err)
	}
	return transcript, nil
}

func (s *FileStore) read(id string) ([]Message, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}
	var transcript []Message
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("parsing session %s: %w", id, err)
	}
	return transcript, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, sanitize(id)+".json")
}

func (s *FileStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sanitize(id)
	if s.sessions[key] == nil {
		s.sessions[key] = &sync.Mutex{}
	}
	return s.sessions[key]
}

// sanitize restricts session ids to a filename-safe alphabet so an id can
// never escape the sessions directory.
func sanitize(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}
