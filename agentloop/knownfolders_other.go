//go:build !windows

package agentloop

// Known folders are plain directories under home outside Windows; relative
// names like "Desktop" resolve against the working directory as usual.
func platformKnownFolders(string) KnownFolders {
	return nil
}
