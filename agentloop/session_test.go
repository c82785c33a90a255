package agentloop

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewSession(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSession(WithWorkingDir(dir), WithEnv(map[string]string{"FOO": "bar"}))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if s.ID() == "" {
		t.Error("expected session id")
	}
	abs, _ := filepath.Abs(dir)
	if s.WorkingDir() != abs {
		t.Errorf("expected working dir %q, got %q", abs, s.WorkingDir())
	}
	if s.Env()["FOO"] != "bar" {
		t.Errorf("expected FOO=bar, got %v", s.Env())
	}
	if len(s.History()) != 0 {
		t.Errorf("expected empty history, got %v", s.History())
	}
}

func TestNewSessionDefaultsToProcessEnvironment(t *testing.T) {
	t.Setenv("DESKAGENT_SESSION_TEST", "yes")
	s, err := NewSession(WithWorkingDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if s.Env()["DESKAGENT_SESSION_TEST"] != "yes" {
		t.Error("expected process environment in snapshot")
	}
}

func TestNewSessionRejectsMissingDirectory(t *testing.T) {
	if _, err := NewSession(WithWorkingDir(filepath.Join(t.TempDir(), "missing"))); err == nil {
		t.Fatal("expected error for missing directory")
	}

	file := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSession(WithWorkingDir(file)); err == nil {
		t.Fatal("expected error for a file")
	}
}

func TestSessionReset(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	s, err := NewSession(WithWorkingDir(dir), WithEnv(map[string]string{"A": "1"}))
	if err != nil {
		t.Fatal(err)
	}

	s.setWorkingDir(sub)
	s.recordCommand("ls", sub, 0)
	env := s.Env()
	env["A"] = "changed"

	if s.Env()["A"] != "1" {
		t.Error("Env must return a copy")
	}
	if len(s.History()) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(s.History()))
	}

	s.Reset()
	abs, _ := filepath.Abs(dir)
	if s.WorkingDir() != abs {
		t.Errorf("expected working dir reset to %q, got %q", abs, s.WorkingDir())
	}
	if len(s.History()) != 0 {
		t.Errorf("expected history cleared, got %v", s.History())
	}
}

func TestSessionInfoKeepsLastFiveCommands(t *testing.T) {
	s, err := NewSession(WithWorkingDir(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 7; i++ {
		s.recordCommand("echo", s.WorkingDir(), i)
	}
	info := s.Info()
	if info.HistoryCount != 7 {
		t.Errorf("expected 7 commands, got %d", info.HistoryCount)
	}
	if len(info.LastCommands) != 5 || info.LastCommands[0].ExitCode != 2 {
		t.Errorf("unexpected last commands %+v", info.LastCommands)
	}
}

func TestSessionEnvironSorted(t *testing.T) {
	s, err := NewSession(WithWorkingDir(t.TempDir()), WithEnv(map[string]string{"B": "2", "A": "1"}))
	if err != nil {
		t.Fatal(err)
	}
	env := s.Environ()
	if len(env) != 2 || env[0] != "A=1" || env[1] != "B=2" {
		t.Errorf("unexpected environ %v", env)
	}
}
