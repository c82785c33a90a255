package agentloop

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// CommandRecord is one entry in a session's command history.
type CommandRecord struct {
	Command  string `json:"command"`
	Cwd      string `json:"cwd"`
	ExitCode int    `json:"exit_code"`
}

// Session is the mutable execution context of one run: the working
// directory, the environment passed to commands and the command history.
// Tools are its only writers.
type Session struct {
	id         string
	initialDir string
	initialEnv map[string]string

	workingDir string
	env        map[string]string
	history    []CommandRecord
	mu         sync.Mutex
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	workingDir string
	env        map[string]string
}

// WithWorkingDir sets the initial working directory. The default is the
// user's home directory.
func WithWorkingDir(dir string) SessionOption {
	return func(o *sessionOptions) { o.workingDir = dir }
}

// WithEnv replaces the environment snapshot taken from the process.
func WithEnv(env map[string]string) SessionOption {
	return func(o *sessionOptions) { o.env = env }
}

// NewSession creates a Session rooted at the configured working directory.
func NewSession(opts ...SessionOption) (*Session, error) {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	dir := o.workingDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = home
	}
	abs, err := absDir(dir)
	if err != nil {
		return nil, err
	}

	env := o.env
	if env == nil {
		env = environSnapshot()
	}

	s := &Session{
		id:         uuid.New().String(),
		initialDir: abs,
		initialEnv: copyEnv(env),
	}
	s.Reset()
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// WorkingDir returns the current working directory.
func (s *Session) WorkingDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workingDir
}

func (s *Session) setWorkingDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workingDir = dir
}

// Env returns a copy of the environment snapshot.
func (s *Session) Env() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyEnv(s.env)
}

// Environ returns the environment as sorted KEY=value pairs.
func (s *Session) Environ() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.env))
	for k, v := range s.env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// History returns a copy of the command history.
func (s *Session) History() []CommandRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := make([]CommandRecord, len(s.history))
	copy(h, s.history)
	return h
}

func (s *Session) recordCommand(command, cwd string, exitCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, CommandRecord{Command: command, Cwd: cwd, ExitCode: exitCode})
}

// Reset restores the initial working directory and environment and clears
// the history.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workingDir = s.initialDir
	s.env = copyEnv(s.initialEnv)
	s.history = nil
}

// SessionInfo summarizes a session for display.
type SessionInfo struct {
	ID           string          `json:"id"`
	WorkingDir   string          `json:"working_dir"`
	HistoryCount int             `json:"history_count"`
	LastCommands []CommandRecord `json:"last_commands"`
}

// Info returns the working directory and the last five commands.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.history
	if len(last) > 5 {
		last = last[len(last)-5:]
	}
	info := SessionInfo{
		ID:           s.id,
		WorkingDir:   s.workingDir,
		HistoryCount: len(s.history),
		LastCommands: make([]CommandRecord, len(last)),
	}
	copy(info.LastCommands, last)
	return info
}

func environSnapshot() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

func copyEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

func absDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("working directory %s is not a directory", abs)
	}
	return abs, nil
}
