// Package config loads optional tool defaults from a JSONC file.
//
// A defaults file lets a project pin its runtime, region, or pip path
// once instead of repeating flags on every invocation. The file format
// is JSONC (JSON with comments), so this package uses
// github.com/tidwall/jsonc to strip comments before parsing with the
// standard encoding/json library.
//
// Precedence is strictly flags > file > built-in defaults: a value
// from the file is only applied when the corresponding flag was not
// set on the command line.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/shinji-kodama/layerpack/internal/model"
)

// FileName is the defaults file name probed in the current directory.
const FileName = "layerpack.jsonc"

// EnvVar names the environment variable that overrides the defaults
// file location.
const EnvVar = "LAYERPACK_CONFIG"

// File holds the defaults a layerpack.jsonc file may supply.
// Every field is optional; unknown fields are ignored so the format
// can grow without breaking older binaries.
type File struct {
	// Runtime is the default --runtime value (e.g., "python3.12").
	Runtime string `json:"runtime,omitempty"`

	// Region is the default --region value.
	Region string `json:"region,omitempty"`

	// Pip is the default --pip executable path.
	Pip string `json:"pip,omitempty"`

	// UseContainer is the default for --use-container. A pointer
	// distinguishes "not set in the file" from an explicit false.
	UseContainer *bool `json:"useContainer,omitempty"`

	// Architectures is the default --architectures list.
	Architectures []string `json:"architectures,omitempty"`
}

// Locate resolves the defaults file path. Resolution order:
//
//  1. explicit --config flag value (must exist; an explicit path that
//     is missing is an error surfaced by Load)
//  2. $LAYERPACK_CONFIG
//  3. ./layerpack.jsonc
//  4. ~/.config/layerpack/config.jsonc
//
// The boolean is false when no defaults file applies, which is the
// common case and not an error.
func Locate(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	if env := os.Getenv(EnvVar); env != "" {
		return env, true
	}
	if _, err := os.Stat(FileName); err == nil {
		return FileName, true
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(homeDir, ".config", "layerpack", "config.jsonc")
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// Load reads and parses a defaults file. Comments and trailing commas
// are stripped by jsonc.ToJSON before standard JSON parsing.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read defaults file %q: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
		return nil, fmt.Errorf("failed to parse defaults file %q: %w", path, err)
	}

	return &f, nil
}

// Apply copies file defaults into the spec for every field whose flag
// was NOT explicitly set. The changed map holds the names of flags the
// user set on the command line (as reported by cobra's Flags().Visit).
func (f *File) Apply(spec *model.BuildSpec, changed map[string]bool) error {
	if f.Runtime != "" && !changed["runtime"] {
		rt, err := model.ParseRuntime(f.Runtime)
		if err != nil {
			return fmt.Errorf("defaults file: %w", err)
		}
		spec.Runtime = rt
	}
	if f.Region != "" && !changed["region"] {
		spec.Region = f.Region
	}
	if f.Pip != "" && !changed["pip"] {
		spec.PipPath = f.Pip
	}
	if f.UseContainer != nil && !changed["use-container"] {
		spec.UseContainer = *f.UseContainer
	}
	if len(f.Architectures) > 0 && !changed["architectures"] {
		archs := make([]model.Architecture, 0, len(f.Architectures))
		for _, s := range f.Architectures {
			arch, err := model.ParseArchitecture(s)
			if err != nil {
				return fmt.Errorf("defaults file: %w", err)
			}
			archs = append(archs, arch)
		}
		spec.Architectures = archs
	}
	return nil
}
