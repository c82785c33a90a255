package agentloop

import (
	"os"
	"path/filepath"
	"strings"
)

// KnownFolder names a user folder whose location the OS may redirect.
type KnownFolder string

const (
	FolderDesktop   KnownFolder = "Desktop"
	FolderDocuments KnownFolder = "Documents"
	FolderDownloads KnownFolder = "Downloads"
)

var knownFolderNames = []KnownFolder{FolderDesktop, FolderDocuments, FolderDownloads}

// KnownFolders reports where the user's folders actually live.
type KnownFolders interface {
	// Location returns the registered location of folder, or "" when it
	// cannot be determined.
	Location(folder KnownFolder) string
}

// PathResolver turns tool path arguments into absolute paths relative to a
// session's working directory.
type PathResolver struct {
	home    string
	folders KnownFolders
}

// NewPathResolver creates a resolver using the platform's known folders.
func NewPathResolver() *PathResolver {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &PathResolver{home: home, folders: platformKnownFolders(home)}
}

// NewPathResolverWith creates a resolver with an explicit home directory and
// folder lookup. A nil folders disables redirection.
func NewPathResolverWith(home string, folders KnownFolders) *PathResolver {
	return &PathResolver{home: home, folders: folders}
}

// Resolve returns the absolute path for raw, interpreted relative to cwd.
//
//   - "" resolves to cwd.
//   - "~" and "~/..." expand to the home directory.
//   - an absolute path under the default location of a known folder is
//     rewritten to the folder's registered location when the two differ.
//   - a relative path whose first segment names a known folder resolves
//     against that folder's location.
//   - anything else is joined to cwd.
func (r *PathResolver) Resolve(raw, cwd string) string {
	if raw == "" {
		return cwd
	}

	if raw == "~" {
		return r.home
	}
	if strings.HasPrefix(raw, "~/") || strings.HasPrefix(raw, `~\`) {
		return filepath.Join(r.home, raw[2:])
	}

	p := filepath.FromSlash(raw)
	if filepath.IsAbs(p) {
		return r.redirectAbsolute(filepath.Clean(p))
	}

	first, rest, _ := strings.Cut(p, string(filepath.Separator))
	if folder, ok := matchKnownFolder(first); ok {
		if loc := r.location(folder); loc != "" {
			return filepath.Join(loc, rest)
		}
	}

	return filepath.Join(cwd, p)
}

func (r *PathResolver) location(folder KnownFolder) string {
	if r.folders == nil {
		return ""
	}
	return r.folders.Location(folder)
}

func (r *PathResolver) redirectAbsolute(p string) string {
	if r.folders == nil || r.home == "" {
		return p
	}
	for _, folder := range knownFolderNames {
		def := filepath.Join(r.home, string(folder))
		rest, ok := cutPathPrefix(p, def)
		if !ok {
			continue
		}
		actual := r.folders.Location(folder)
		if actual == "" || strings.EqualFold(filepath.Clean(actual), def) {
			return p
		}
		return filepath.Join(actual, rest)
	}
	return p
}

func matchKnownFolder(segment string) (KnownFolder, bool) {
	for _, f := range knownFolderNames {
		if strings.EqualFold(segment, string(f)) {
			return f, true
		}
	}
	return "", false
}

// cutPathPrefix reports whether p equals prefix or lies beneath it, and
// returns the remainder. Comparison ignores case because the platforms that
// redirect folders have case-insensitive file systems.
func cutPathPrefix(p, prefix string) (string, bool) {
	if len(p) < len(prefix) || !strings.EqualFold(p[:len(prefix)], prefix) {
		return "", false
	}
	rest := p[len(prefix):]
	if rest == "" {
		return "", true
	}
	if rest[0] != filepath.Separator {
		return "", false
	}
	return rest[1:], true
}

// folderMap is a fixed KnownFolders lookup.
type folderMap map[KnownFolder]string

func (m folderMap) Location(folder KnownFolder) string { return m[folder] }

// StaticKnownFolders returns a KnownFolders backed by a fixed mapping.
func StaticKnownFolders(locations map[KnownFolder]string) KnownFolders {
	return folderMap(locations)
}
