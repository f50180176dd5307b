// Package project loads the optional eva.toml project manifest.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ManifestName is the file the loader looks for next to a program.
const ManifestName = "eva.toml"

// VMConfig is the [vm] section: execution knobs for the machine.
type VMConfig struct {
	StackSize   int  `toml:"stack-size"`
	GCThreshold int  `toml:"gc-threshold"`
	Disassemble bool `toml:"disassemble"`
	HeapStats   bool `toml:"heap-stats"`
}

// Manifest is a parsed eva.toml.
type Manifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	VM VMConfig `toml:"vm"`
}

// ErrPackageNameMissing indicates that [package].name is missing.
var ErrPackageNameMissing = errors.New("missing [package].name")

// Load parses a manifest file.
func Load(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if meta.IsDefined("package") && m.Package.Name == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrPackageNameMissing)
	}
	return &m, nil
}

// LoadNear looks for eva.toml in the directory containing path and
// loads it when present. A missing manifest is not an error.
func LoadNear(path string) (*Manifest, bool, error) {
	dir := filepath.Dir(path)
	manifestPath := filepath.Join(dir, ManifestName)
	if _, err := os.Stat(manifestPath); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	m, err := Load(manifestPath)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}
