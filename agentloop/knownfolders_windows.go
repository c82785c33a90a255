//go:build windows

package agentloop

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows/registry"
)

const userShellFoldersKey = `Software\Microsoft\Windows\CurrentVersion\Explorer\User Shell Folders`

// Registry value names under User Shell Folders.
var shellFolderValues = map[KnownFolder]string{
	FolderDesktop:   "Desktop",
	FolderDocuments: "Personal",
	FolderDownloads: "{374DE290-123F-4565-9164-39C4925E467B}",
}

// windowsFolders reads folder locations from the registry, then falls back
// to OneDrive and the home directory.
type windowsFolders struct {
	home string
}

func platformKnownFolders(home string) KnownFolders {
	return windowsFolders{home: home}
}

func (w windowsFolders) Location(folder KnownFolder) string {
	if p := registryFolder(folder); p != "" {
		return p
	}
	for _, env := range []string{"OneDrive", "OneDriveConsumer", "OneDriveCommercial"} {
		root := os.Getenv(env)
		if root == "" {
			continue
		}
		if p := filepath.Join(root, string(folder)); isDir(p) {
			return p
		}
	}
	if p := filepath.Join(w.home, string(folder)); isDir(p) {
		return p
	}
	return ""
}

func registryFolder(folder KnownFolder) string {
	name, ok := shellFolderValues[folder]
	if !ok {
		return ""
	}
	k, err := registry.OpenKey(registry.CURRENT_USER, userShellFoldersKey, registry.QUERY_VALUE)
	if err != nil {
		return ""
	}
	defer k.Close()

	val, _, err := k.GetStringValue(name)
	if err != nil || val == "" {
		return ""
	}
	if strings.Contains(val, "%") {
		if expanded, err := registry.ExpandString(val); err == nil {
			val = expanded
		}
	}
	if !isDir(val) {
		return ""
	}
	return filepath.Clean(val)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
