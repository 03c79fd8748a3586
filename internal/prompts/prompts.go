// Package prompts serves the system prompts for the orchestrator and the
// operator agents. Each prompt ships as an embedded default and can be
// overridden by dropping a markdown file with the same name into the
// prompts directory.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

//go:embed defaults/*.md
var defaults embed.FS

// Store reads prompts by name, preferring on-disk overrides so a prompt can
// be tuned without a rebuild.
type Store struct {
	dir    string
	logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) *Store {
	if _, err := os.Stat(dir); err != nil {
		logger.Warn("prompts directory does not exist, using embedded defaults only", zap.String("dir", dir))
	}
	return &Store{dir: dir, logger: logger}
}

// Get returns the prompt with the given name, with or without the .md
// extension. Disk overrides win over embedded defaults.
func (s *Store) Get(name string) (string, error) {
	if !strings.HasSuffix(name, ".md") {
		name += ".md"
	}

	if data, err := os.ReadFile(filepath.Join(s.dir, name)); err == nil {
		s.logger.Debug("loaded prompt override", zap.String("name", name))
		return strings.TrimSpace(string(data)), nil
	}

	data, err := defaults.ReadFile("defaults/" + name)
	if err != nil {
		return "", fmt.Errorf("prompt not found: %s", name)
	}
	return strings.TrimSpace(string(data)), nil
}

// Available lists every prompt name the store can serve, without the .md
// extension.
func (s *Store) Available() []string {
	names := map[string]struct{}{}

	if entries, err := defaults.ReadDir("defaults"); err == nil {
		for _, e := range entries {
			names[strings.TrimSuffix(e.Name(), ".md")] = struct{}{}
		}
	}
	if entries, err := os.ReadDir(s.dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
				names[strings.TrimSuffix(e.Name(), ".md")] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
