// Package scaffold writes a starter keyhunt.yml and sample message for
// 'keyhunt init'.
package scaffold

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dyluth/keyhunt/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// Files created by Initialize, relative to the target directory.
const (
	ConfigFile  = "keyhunt.yml"
	MessageFile = "message.txt"
)

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Template    string
	Permissions os.FileMode
}

var files = []FileInfo{
	{Path: ConfigFile, Template: "templates/keyhunt.yml.tmpl", Permissions: 0644},
	{Path: MessageFile, Template: "templates/message.txt.tmpl", Permissions: 0644},
}

// CheckExisting returns an error listing the starter files already present
// in dir.
func CheckExisting(dir string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(dir, f.Path)); err == nil {
			existing = append(existing, f.Path)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	msg := "project already initialized\n\nFound existing"
	if len(existing) == 1 {
		msg += fmt.Sprintf(": %s\n", existing[0])
	} else {
		msg += " files:\n"
		for _, f := range existing {
			msg += fmt.Sprintf("  - %s\n", f)
		}
	}
	msg += "\nUse 'keyhunt init --force' to overwrite them"
	return fmt.Errorf("%s", msg)
}

// Initialize writes the starter files into dir, overwriting existing ones,
// and checks that the written configuration loads.
func Initialize(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	for _, f := range files {
		content, err := templatesFS.ReadFile(f.Template)
		if err != nil {
			return fmt.Errorf("failed to read %s template: %w", f.Path, err)
		}
		path := filepath.Join(dir, f.Path)
		if err := os.WriteFile(path, content, f.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	if _, err := config.Load(filepath.Join(dir, ConfigFile)); err != nil {
		return fmt.Errorf("created %s does not load: %w", ConfigFile, err)
	}
	return nil
}

// PrintSuccess writes the created files and the next steps.
func PrintSuccess(w io.Writer) {
	fmt.Fprintln(w, "\n✅ Successfully initialized keyhunt project!")
	fmt.Fprintln(w, "\nCreated:")
	for _, f := range files {
		fmt.Fprintf(w, "  ✓ %s\n", f.Path)
	}
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  1. Adjust the keyspace and participants in keyhunt.yml")
	fmt.Fprintln(w, "  2. Run 'keyhunt run message.txt --phrase \"es una prueba de\" --key 4242'")
}
