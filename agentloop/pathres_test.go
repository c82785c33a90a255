package agentloop

import (
	"path/filepath"
	"runtime"
	"testing"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses Unix paths and shell")
	}
}

func TestPathResolverResolve(t *testing.T) {
	skipOnWindows(t)
	home := filepath.FromSlash("/home/u")
	cwd := filepath.Join(home, "project")
	r := NewPathResolverWith(home, nil)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty is cwd", "", cwd},
		{"tilde", "~", home},
		{"tilde subpath", "~/x", filepath.Join(home, "x")},
		{"relative", "sub/f", filepath.Join(cwd, "sub", "f")},
		{"dot relative", "./f", filepath.Join(cwd, "f")},
		{"parent", "../other", filepath.Join(home, "other")},
		{"absolute", filepath.FromSlash("/etc/hosts"), filepath.FromSlash("/etc/hosts")},
		{"folder alias without lookup", "Desktop/a.txt", filepath.Join(cwd, "Desktop", "a.txt")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.raw, cwd); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestPathResolverTildeIgnoresCwd(t *testing.T) {
	skipOnWindows(t)
	home := filepath.FromSlash("/home/u")
	r := NewPathResolverWith(home, nil)
	for _, cwd := range []string{filepath.FromSlash("/tmp"), filepath.FromSlash("/var/lib")} {
		if got := r.Resolve("~/x", cwd); got != filepath.Join(home, "x") {
			t.Errorf("cwd %q: got %q", cwd, got)
		}
	}
}

func TestPathResolverKnownFolders(t *testing.T) {
	skipOnWindows(t)
	home := filepath.FromSlash("/home/u")
	oneDrive := filepath.FromSlash("/cloud/OneDrive/Desktop")
	cwd := filepath.FromSlash("/work")
	r := NewPathResolverWith(home, StaticKnownFolders(map[KnownFolder]string{
		FolderDesktop:   oneDrive,
		FolderDocuments: filepath.Join(home, "Documents"),
	}))

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"alias", "Desktop", oneDrive},
		{"alias case-insensitive", "desktop/notes.txt", filepath.Join(oneDrive, "notes.txt")},
		{"default absolute rewritten", filepath.Join(home, "Desktop", "a.txt"), filepath.Join(oneDrive, "a.txt")},
		{"default absolute root rewritten", filepath.Join(home, "Desktop"), oneDrive},
		{"unredirected folder kept", filepath.Join(home, "Documents", "b.txt"), filepath.Join(home, "Documents", "b.txt")},
		{"similar prefix kept", filepath.Join(home, "Desktops", "c"), filepath.Join(home, "Desktops", "c")},
		{"unknown folder alias", "Downloads/x", filepath.Join(cwd, "Downloads", "x")},
		{"not first segment", "a/Desktop", filepath.Join(cwd, "a", "Desktop")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.raw, cwd); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
