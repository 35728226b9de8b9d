// Package scaffold writes a starter tuplebridge configuration file.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/tuplebridge/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// Format selects the configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FileName returns the configuration file name for f.
func (f Format) FileName() string {
	if f == FormatTOML {
		return "tuplebridge.toml"
	}
	return "tuplebridge.yml"
}

// Initialize writes the starter configuration into dir and returns its path.
// Without force it refuses to overwrite an existing configuration.
func Initialize(dir string, format Format, force bool) (string, error) {
	if format != FormatYAML && format != FormatTOML {
		return "", fmt.Errorf("unknown format: %s", format)
	}

	if force {
		if err := handleForce(dir); err != nil {
			return "", err
		}
	} else if err := CheckExisting(dir); err != nil {
		return "", err
	}

	content, err := templatesFS.ReadFile("templates/" + format.FileName() + ".tmpl")
	if err != nil {
		return "", fmt.Errorf("failed to read %s template: %w", format, err)
	}

	path := filepath.Join(dir, format.FileName())
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	// The template must load cleanly with the same rules the service uses.
	if _, err := config.Load(path); err != nil {
		return "", fmt.Errorf("created %s is invalid: %w", path, err)
	}

	return path, nil
}

// handleForce removes every existing configuration file in dir.
func handleForce(dir string) error {
	for _, f := range []Format{FormatYAML, FormatTOML} {
		path := filepath.Join(dir, f.FileName())
		if _, err := os.Stat(path); err == nil {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove %s: %w", path, err)
			}
		}
	}
	return nil
}
