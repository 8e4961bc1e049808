// Package emit writes the topology snapshot and the edge address roster in
// the formats the emulation platform consumes.
package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/netsynth/topogen/topology"
)

// WriteTopology renders the snapshot as YAML.
func WriteTopology(w io.Writer, snap *topology.Snapshot) error {
	out, err := yaml.MarshalWithOptions(snap, yaml.Indent(2))
	if err != nil {
		return fmt.Errorf("marshal topology: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// WriteRoster renders the edge address roster as JSON.
func WriteRoster(w io.Writer, roster []topology.RosterEntry) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(roster); err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}
	return nil
}

// WriteTopologyFile writes the snapshot to path, creating parent directories.
func WriteTopologyFile(path string, snap *topology.Snapshot) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteTopology(w, snap)
	})
}

// WriteRosterFile writes the roster to path, creating parent directories.
func WriteRosterFile(path string, roster []topology.RosterEntry) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteRoster(w, roster)
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
