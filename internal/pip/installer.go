// Package pip provides pip invocation for materializing Python
// dependencies into a target directory.
//
// This package wraps the pip CLI (via os/exec) to install packages with
// `pip install --target <dir>`, from an explicit library list and/or a
// requirements file. It is the package-installer integration layer of
// the build pipeline.
//
// Design decisions:
//   - We shell out to `pip` rather than resolving packages ourselves
//     because dependency resolution and version-conflict handling are
//     explicitly delegated to the installer.
//   - Each library is installed with its own pip invocation so that a
//     failing package specifier is reported precisely, rather than
//     burying it in the output of one large install.
//   - All errors from pip are wrapped in model.CLIError with
//     ExitPipFailed and include pip's combined output, since pip's own
//     message (bad package name, network failure) is the useful part.
package pip

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shinji-kodama/layerpack/internal/model"
)

// candidateBinaries are probed in order when no explicit pip path is
// configured. "pip3" is preferred because "pip" still resolves to
// Python 2 on some distributions.
var candidateBinaries = []string{"pip3", "pip"}

// Installer invokes pip to install packages into a target directory.
//
// The zero value is not usable; construct with NewInstaller, which
// resolves the pip executable once so every subsequent install uses
// the same binary.
type Installer struct {
	// pipPath is the resolved pip executable.
	pipPath string

	// log emits debug-level traces of each pip invocation.
	log zerolog.Logger
}

// NewInstaller creates an Installer.
//
// When pipPath is non-empty it is used as-is (the caller asked for a
// specific executable, e.g. one inside a virtualenv). Otherwise the
// PATH is probed for pip3, then pip.
//
// Returns a model.CLIError with ExitPipFailed if no pip executable
// can be found.
func NewInstaller(pipPath string, log zerolog.Logger) (*Installer, error) {
	if pipPath != "" {
		return &Installer{pipPath: pipPath, log: log}, nil
	}

	for _, name := range candidateBinaries {
		if resolved, err := exec.LookPath(name); err == nil {
			return &Installer{pipPath: resolved, log: log}, nil
		}
	}

	return nil, model.NewCLIError(
		model.ExitPipFailed,
		"pip executable not found in PATH (tried pip3, pip); install pip or pass --pip",
	)
}

// PipPath returns the resolved pip executable path.
func (i *Installer) PipPath() string {
	return i.pipPath
}

// InstallLibraries installs each library specifier into targetDir using
// `pip install <lib> --target <dir>`. Libraries are installed one at a
// time; the first failure aborts the sequence.
func (i *Installer) InstallLibraries(ctx context.Context, libraries []string, targetDir string) error {
	for _, lib := range libraries {
		if err := i.runPip(ctx, fmt.Sprintf("install %q failed", lib),
			"install", lib, "--target", targetDir); err != nil {
			return err
		}
	}
	return nil
}

// InstallRequirements installs the entries of a requirements file into
// targetDir using `pip install -r <file> --target <dir>`.
func (i *Installer) InstallRequirements(ctx context.Context, requirementsFile, targetDir string) error {
	return i.runPip(ctx, fmt.Sprintf("install from %q failed", requirementsFile),
		"install", "-r", requirementsFile, "--target", targetDir)
}

// runPip executes a single pip command. On failure the combined
// stdout/stderr output is folded into the error message, because pip
// prints the actionable diagnostics (resolution errors, 404s) there.
func (i *Installer) runPip(ctx context.Context, failMsg string, args ...string) error {
	i.log.Debug().Str("pip", i.pipPath).Strs("args", args).Msg("running pip")

	cmd := exec.CommandContext(ctx, i.pipPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return model.WrapCLIError(
			model.ExitPipFailed,
			fmt.Sprintf("pip %s: %s", failMsg, strings.TrimSpace(string(output))),
			err,
		)
	}

	return nil
}
