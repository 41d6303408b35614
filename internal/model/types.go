package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Runtime identifies the Lambda runtime a layer is built for
// (e.g., "python3.10"). The runtime constrains the directory layout
// inside the layer archive: Python runtimes expect importable packages
// under a top-level "python/" prefix.
//
// Only Python runtimes are accepted because the installer is pip.
// Layers for other runtimes would need a different package manager
// and a different archive prefix.
type Runtime string

// DefaultRuntime is the runtime used when --runtime is not specified.
const DefaultRuntime Runtime = "python3.10"

// pythonRuntimeRegex matches Lambda Python runtime identifiers such as
// "python3.10" or "python3.12".
var pythonRuntimeRegex = regexp.MustCompile(`^python3\.\d+$`)

// String returns the string representation of the Runtime.
// This satisfies fmt.Stringer for CLI output and logging.
func (r Runtime) String() string {
	return string(r)
}

// IsValid reports whether the Runtime is a supported Python runtime
// identifier.
func (r Runtime) IsValid() bool {
	return pythonRuntimeRegex.MatchString(string(r))
}

// LayerPrefix returns the top-level directory that installed packages
// must live under inside the layer archive. For Python runtimes the
// Lambda execution environment adds "/opt/python" to sys.path, so the
// prefix is always "python".
func (r Runtime) LayerPrefix() string {
	return "python"
}

// BuildImage returns the AWS SAM build container image for this runtime.
// These images mirror the Lambda execution environment, so compiled
// wheels installed inside them are binary-compatible with Lambda.
//
// Example: Runtime("python3.10").BuildImage() → "public.ecr.aws/sam/build-python3.10:latest"
func (r Runtime) BuildImage() string {
	return "public.ecr.aws/sam/build-" + string(r) + ":latest"
}

// ParseRuntime converts a string to a Runtime.
// Returns an error if the string is not a supported Python runtime.
func ParseRuntime(s string) (Runtime, error) {
	rt := Runtime(strings.ToLower(strings.TrimSpace(s)))
	if !rt.IsValid() {
		return "", fmt.Errorf("unsupported runtime %q: expected a Python runtime like %q", s, DefaultRuntime)
	}
	return rt, nil
}

// Architecture is a Lambda-compatible instruction set architecture
// attached to a published layer version.
type Architecture string

const (
	// ArchX8664 is the default Lambda architecture.
	ArchX8664 Architecture = "x86_64"

	// ArchARM64 is the Graviton-based Lambda architecture.
	ArchARM64 Architecture = "arm64"
)

// String returns the string representation of the Architecture.
func (a Architecture) String() string {
	return string(a)
}

// IsValid reports whether the Architecture is one of the values the
// PublishLayerVersion API accepts.
func (a Architecture) IsValid() bool {
	switch a {
	case ArchX8664, ArchARM64:
		return true
	default:
		return false
	}
}

// ParseArchitecture converts a string to an Architecture.
// Returns an error if the string does not name a valid architecture.
func ParseArchitecture(s string) (Architecture, error) {
	arch := Architecture(strings.ToLower(strings.TrimSpace(s)))
	if !arch.IsValid() {
		return "", fmt.Errorf("invalid architecture %q (valid: x86_64, arm64)", s)
	}
	return arch, nil
}

// layerNameRegex enforces the AWS constraint on layer names:
// 1-64 characters, letters, digits, hyphens and underscores only.
var layerNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateLayerName checks whether the given name is a valid Lambda
// layer name per the PublishLayerVersion API constraints.
func ValidateLayerName(name string) error {
	if name == "" {
		return fmt.Errorf("layer name must not be empty")
	}
	if !layerNameRegex.MatchString(name) {
		return fmt.Errorf("invalid layer name %q: must be 1-64 characters of letters, digits, hyphens or underscores", name)
	}
	return nil
}

// BuildSpec is the single configuration record the pipeline consumes.
// It is assembled from command-line flags, the optional defaults file,
// and (when no dependency source was given) the interactive prompt.
type BuildSpec struct {
	// LayerName is the Lambda layer name, used both for the output zip
	// filename and for the PublishLayerVersion call.
	LayerName string `json:"layerName"`

	// Runtime is the compatible runtime recorded on the published
	// layer version, and determines the archive path prefix.
	Runtime Runtime `json:"runtime"`

	// Region is the AWS region the layer version is published to.
	Region string `json:"region"`

	// Libraries is the list of pip package specifiers to install.
	// May be empty when RequirementsFile is set.
	Libraries []string `json:"libraries,omitempty"`

	// RequirementsFile is an optional path to a requirements.txt file
	// installed in addition to Libraries.
	RequirementsFile string `json:"requirementsFile,omitempty"`

	// Description is the layer version description. When empty, a
	// description is derived from the library list at publish time.
	Description string `json:"description,omitempty"`

	// Architectures lists the compatible architectures recorded on the
	// published version. Empty means the field is omitted from the call.
	Architectures []Architecture `json:"architectures,omitempty"`

	// OutputPath is where the zip archive is written. The archive lives
	// outside the temporary build directory so that it survives cleanup
	// and remains available for manual retry after upload failures.
	OutputPath string `json:"outputPath"`

	// Upload controls whether the archive is published after building.
	Upload bool `json:"upload"`

	// UseContainer runs pip inside the SAM build image matching Runtime
	// instead of on the host, so compiled wheels match the Lambda
	// execution environment.
	UseContainer bool `json:"useContainer"`

	// PipPath optionally overrides the pip executable used for host
	// installs. Empty means auto-discovery (pip3, then pip).
	PipPath string `json:"pipPath,omitempty"`
}

// Validate checks the BuildSpec invariants and fills derived defaults.
//
// The one substantive invariant from the data model is that at least one
// of Libraries / RequirementsFile must be non-empty before installation
// proceeds; everything else is field-level format validation.
func (s *BuildSpec) Validate() error {
	if err := ValidateLayerName(s.LayerName); err != nil {
		return err
	}
	if !s.Runtime.IsValid() {
		return fmt.Errorf("unsupported runtime %q", s.Runtime)
	}
	if s.Region == "" {
		return fmt.Errorf("region must not be empty")
	}
	if len(s.Libraries) == 0 && s.RequirementsFile == "" {
		return fmt.Errorf("no libraries and no requirements file specified")
	}
	for _, lib := range s.Libraries {
		if strings.TrimSpace(lib) == "" {
			return fmt.Errorf("library names must not be blank")
		}
	}
	for _, arch := range s.Architectures {
		if !arch.IsValid() {
			return fmt.Errorf("invalid architecture %q (valid: x86_64, arm64)", arch)
		}
	}
	if s.OutputPath == "" {
		s.OutputPath = s.LayerName + ".zip"
	}
	return nil
}

// DefaultDescription derives a layer version description from the
// dependency sources, mirroring the text the original tool attached
// to published versions.
func (s *BuildSpec) DefaultDescription() string {
	if s.Description != "" {
		return s.Description
	}
	if len(s.Libraries) > 0 {
		return "Lambda layer for " + strings.Join(s.Libraries, ", ")
	}
	return "Lambda layer for multiple libraries"
}

// PublishResult holds the provider-assigned identifiers returned by a
// successful PublishLayerVersion call. This is the only data that flows
// back out of the pipeline besides success/failure.
type PublishResult struct {
	// LayerArn is the ARN of the layer (without a version suffix).
	LayerArn string `json:"layerArn"`

	// LayerVersionArn is the ARN of the specific published version.
	// This is the identifier printed to the console on success.
	LayerVersionArn string `json:"layerVersionArn"`

	// Version is the provider-assigned version number.
	Version int64 `json:"version"`
}

// LayerVersionInfo describes one published version of a layer, as
// returned by the ListLayerVersions API. Used by the "versions" command.
type LayerVersionInfo struct {
	// Version is the provider-assigned version number.
	Version int64 `json:"version"`

	// LayerVersionArn is the ARN of this specific version.
	LayerVersionArn string `json:"layerVersionArn"`

	// Description is the description recorded at publish time.
	Description string `json:"description,omitempty"`

	// CreatedDate is the provider-reported creation timestamp
	// (ISO-8601 string, passed through unparsed).
	CreatedDate string `json:"createdDate,omitempty"`

	// CompatibleRuntimes lists the runtimes recorded on this version.
	CompatibleRuntimes []string `json:"compatibleRuntimes,omitempty"`
}

// ExitCode defines the CLI exit codes. These codes allow scripts and CI
// systems to programmatically distinguish the failure kinds described
// in the error handling design.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitMissingInput indicates neither libraries nor a requirements
	// file were supplied, even after the interactive prompt.
	ExitMissingInput ExitCode = 2

	// ExitPipFailed indicates the package installer exited non-zero
	// (bad package name, network failure, etc.).
	ExitPipFailed ExitCode = 3

	// ExitArchiveFailed indicates the zip archive could not be written.
	ExitArchiveFailed ExitCode = 4

	// ExitUploadFailed indicates the PublishLayerVersion call failed
	// (bad credentials, permission denied, name conflict). The build
	// artifact is retained on disk when this code is returned.
	ExitUploadFailed ExitCode = 5

	// ExitDockerNotRunning indicates --use-container was requested but
	// the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 6

	// ExitUserCancelled indicates the user cancelled an interactive prompt.
	ExitUserCancelled ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
