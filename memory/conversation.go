package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the persisted role values.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ErrInvalidRole is returned when a persisted message carries an unknown role.
var ErrInvalidRole = errors.New("memory: invalid role")

// Message is a single conversational turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant returns an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Conversation is the ordered conversation log, oldest first.
type Conversation []Message

// New returns a log holding only the directive message.
func New(directive string) Conversation {
	return Conversation{System(directive)}
}

// HasDirective reports whether the log starts with a system message.
func (c Conversation) HasDirective() bool {
	return len(c) > 0 && c[0].Role == RoleSystem
}

// Store persists a Conversation as a single JSON file on an afero filesystem.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore returns a Store for path on fs. A nil fs means the OS filesystem.
func NewStore(fs afero.Fs, path string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, path: path}
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string { return s.path }

// Load reads the persisted log. A missing file returns nil, nil.
func (s *Store) Load() (Conversation, error) {
	b, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var msgs Conversation
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return nil, fmt.Errorf("%w %q at index %d", ErrInvalidRole, m.Role, i)
		}
	}
	return msgs, nil
}

// Save overwrites the persisted log with msgs.
func (s *Store) Save(msgs Conversation) error {
	if msgs == nil {
		msgs = Conversation{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(msgs); err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}

// Remove deletes the persisted log. Removing a missing file is not an error.
func (s *Store) Remove() error {
	err := s.fs.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

