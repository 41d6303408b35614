// Package manifest parses the YAML manifest consumed by the "batch"
// command, which builds several layers sequentially from one file.
//
// A manifest looks like:
//
//	layers:
//	  - name: http-deps
//	    runtime: python3.12
//	    libraries: [requests, urllib3]
//	  - name: data-deps
//	    requirementsFile: data/requirements.txt
//	    architectures: [arm64]
//	    description: pandas stack for the reporting functions
//
// Per-layer fields override the command-line/file defaults; absent
// fields inherit them.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/layerpack/internal/model"
)

// Manifest is the top-level structure of a layers YAML file.
type Manifest struct {
	// Layers lists the layer definitions, built in file order.
	Layers []Layer `yaml:"layers"`
}

// Layer is one layer definition in the manifest. Name is required and
// at least one of Libraries / RequirementsFile must be present; the
// remaining fields fall back to the invocation-wide defaults.
type Layer struct {
	// Name is the Lambda layer name.
	Name string `yaml:"name"`

	// Runtime overrides the default runtime for this layer.
	Runtime string `yaml:"runtime,omitempty"`

	// Libraries lists pip package specifiers to install.
	Libraries []string `yaml:"libraries,omitempty"`

	// RequirementsFile is a requirements.txt path, resolved relative
	// to the process working directory (not the manifest file).
	RequirementsFile string `yaml:"requirementsFile,omitempty"`

	// Description overrides the derived layer version description.
	Description string `yaml:"description,omitempty"`

	// Architectures overrides the default compatible architectures.
	Architectures []string `yaml:"architectures,omitempty"`

	// Output overrides the default "<name>.zip" archive path.
	Output string `yaml:"output,omitempty"`
}

// Load reads and parses a manifest file and validates its structure.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %q: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %q: %w", path, err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %q: %w", path, err)
	}

	return &m, nil
}

// validate checks the manifest-level invariants: at least one layer,
// unique valid names, and a dependency source per layer. Runtime and
// architecture values are validated later in BuildSpec.Validate, after
// defaults have been merged in.
func (m *Manifest) validate() error {
	if len(m.Layers) == 0 {
		return fmt.Errorf("manifest defines no layers")
	}

	seen := make(map[string]bool)
	for i := range m.Layers {
		l := &m.Layers[i]
		if err := model.ValidateLayerName(l.Name); err != nil {
			return fmt.Errorf("layer %d: %w", i+1, err)
		}
		if seen[l.Name] {
			return fmt.Errorf("duplicate layer name %q", l.Name)
		}
		seen[l.Name] = true

		if len(l.Libraries) == 0 && l.RequirementsFile == "" {
			return fmt.Errorf("layer %q: no libraries and no requirements file specified", l.Name)
		}
	}
	return nil
}

// ToBuildSpec merges a manifest layer with the invocation-wide
// defaults (region, runtime, upload flag, container mode, pip path)
// into a complete BuildSpec. The returned spec is validated.
func (l *Layer) ToBuildSpec(defaults model.BuildSpec) (model.BuildSpec, error) {
	spec := defaults
	spec.LayerName = l.Name
	spec.Libraries = l.Libraries
	spec.RequirementsFile = l.RequirementsFile
	spec.Description = l.Description
	spec.OutputPath = l.Output

	if l.Runtime != "" {
		rt, err := model.ParseRuntime(l.Runtime)
		if err != nil {
			return model.BuildSpec{}, fmt.Errorf("layer %q: %w", l.Name, err)
		}
		spec.Runtime = rt
	}

	if len(l.Architectures) > 0 {
		archs := make([]model.Architecture, 0, len(l.Architectures))
		for _, s := range l.Architectures {
			arch, err := model.ParseArchitecture(s)
			if err != nil {
				return model.BuildSpec{}, fmt.Errorf("layer %q: %w", l.Name, err)
			}
			archs = append(archs, arch)
		}
		spec.Architectures = archs
	}

	if err := spec.Validate(); err != nil {
		return model.BuildSpec{}, fmt.Errorf("layer %q: %w", l.Name, err)
	}
	return spec, nil
}
