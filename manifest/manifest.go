// Package manifest handles loom.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultQueueSize is the default capacity of the stale-reference
// notification queue.
const DefaultQueueSize = 64

// Manifest represents a loom.toml project configuration.
type Manifest struct {
	Project Project       `toml:"project"`
	Archive ArchiveConfig `toml:"archive"`
	Nexus   NexusConfig   `toml:"nexus"`

	// Dir is the directory containing the loom.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// ArchiveConfig configures the unit archive.
type ArchiveConfig struct {
	Path string `toml:"path"`
}

// NexusConfig configures registry stale-entry management.
type NexusConfig struct {
	// QueueSize is the capacity of the collected-context notification
	// queue. Notifications arriving on a full queue are dropped.
	QueueSize int `toml:"queue-size"`

	// Cleaner enables the background cleaner draining the queue.
	Cleaner bool `toml:"cleaner"`
}

// Load parses a loom.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "loom.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Archive.Path == "" {
		m.Archive.Path = "units.db"
	}
	if m.Nexus.QueueSize <= 0 {
		m.Nexus.QueueSize = DefaultQueueSize
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a loom.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "loom.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ArchivePath returns the absolute path of the configured unit
// archive.
func (m *Manifest) ArchivePath() string {
	if filepath.IsAbs(m.Archive.Path) {
		return m.Archive.Path
	}
	return filepath.Join(m.Dir, m.Archive.Path)
}
