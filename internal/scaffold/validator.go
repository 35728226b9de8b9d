package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CheckExisting returns an error naming the configuration files already
// present in dir, or nil if there are none.
func CheckExisting(dir string) error {
	var existing []string
	for _, f := range []Format{FormatYAML, FormatTOML} {
		if _, err := os.Stat(filepath.Join(dir, f.FileName())); err == nil {
			existing = append(existing, f.FileName())
		}
	}

	if len(existing) == 0 {
		return nil
	}
	return fmt.Errorf("already initialized: found %s\n\nUse 'tuplebridge init --force' to overwrite the existing configuration",
		strings.Join(existing, ", "))
}
