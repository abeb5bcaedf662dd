//go:build !windows

package registry

import "github.com/google/renameio/v2"

// writeFile replaces path atomically. An existing file keeps its
// permissions; a new one gets 0644 less the umask.
func writeFile(path string, data []byte) error {
	return renameio.WriteFile(path, data, 0o644)
}
