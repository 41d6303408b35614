// build.go implements the root command's build pipeline.
//
// Pipeline steps:
//  1. Assemble the BuildSpec from flags, the optional defaults file,
//     and (when no dependency source was given) the interactive prompt
//  2. Create a temporary build directory with the runtime's layer
//     prefix subdirectory ("python/")
//  3. Install dependencies with pip, on the host or inside a SAM
//     build container (--use-container)
//  4. Zip the build directory contents to the output path
//  5. Unless --no-upload: publish the archive as a new layer version
//     and print the provider-assigned ARN
//
// The temporary directory is removed on every exit path. The output
// zip is never removed by this tool: on upload failure it is kept on
// disk so the upload can be retried without rebuilding.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/shinji-kodama/layerpack/internal/archive"
	"github.com/shinji-kodama/layerpack/internal/config"
	"github.com/shinji-kodama/layerpack/internal/docker"
	"github.com/shinji-kodama/layerpack/internal/lambda"
	"github.com/shinji-kodama/layerpack/internal/model"
	"github.com/shinji-kodama/layerpack/internal/pip"
)

// buildFlags holds the flag values for the build pipeline.
// These are bound to cobra flags in bindBuildFlags.
type buildFlags struct {
	libraries        []string // --libraries: pip package specifiers
	requirementsFile string   // --requirements-file: requirements.txt path
	layerName        string   // --layer-name: Lambda layer name
	runtime          string   // --runtime: compatible runtime id
	region           string   // --region: AWS region for the upload
	noUpload         bool     // --no-upload: build locally only
	output           string   // --output: zip destination path
	description      string   // --description: layer version description
	architectures    []string // --architectures: compatible architectures
	useContainer     bool     // --use-container: pip inside SAM build image
	pip              string   // --pip: pip executable override
}

// bindBuildFlags registers the build pipeline flags on a command.
// Shared with the root command; batch binds its own subset.
func bindBuildFlags(cmd *cobra.Command, flags *buildFlags) {
	cmd.Flags().StringSliceVar(&flags.libraries, "libraries", nil,
		"Names of the pip libraries to include in the layer")
	cmd.Flags().StringVar(&flags.requirementsFile, "requirements-file", "",
		"Path to a requirements.txt file to install additional libraries")
	cmd.Flags().StringVar(&flags.layerName, "layer-name", "", "Name of the Lambda layer (required)")
	cmd.Flags().StringVar(&flags.runtime, "runtime", string(model.DefaultRuntime),
		"Runtime for the Lambda layer")
	cmd.Flags().StringVar(&flags.region, "region", "us-east-1", "AWS region to publish the layer in")
	cmd.Flags().BoolVar(&flags.noUpload, "no-upload", false, "Build the layer archive without uploading")
	cmd.Flags().StringVar(&flags.output, "output", "", "Archive output path (default <layer-name>.zip)")
	cmd.Flags().StringVar(&flags.description, "description", "", "Layer version description")
	cmd.Flags().StringSliceVar(&flags.architectures, "architectures", nil,
		"Compatible architectures: x86_64, arm64")
	cmd.Flags().BoolVar(&flags.useContainer, "use-container", false,
		"Run pip inside the SAM build image matching the runtime")
	cmd.Flags().StringVar(&flags.pip, "pip", "", "Pip executable to use (default pip3, then pip)")
}

// publisher abstracts the layer-publishing client for the pipeline,
// so tests can verify that --no-upload builds never construct one.
type publisher interface {
	PublishLayer(ctx context.Context, spec *model.BuildSpec, zipBytes []byte) (*model.PublishResult, error)
}

// newPublisher constructs the real AWS-backed publisher.
// Swapped out in tests.
var newPublisher = func(ctx context.Context, region string) (publisher, error) {
	return lambda.NewClient(ctx, region)
}

// runBuild assembles the BuildSpec from the command line and executes
// the pipeline. Called by the root command's RunE.
func runBuild(cmd *cobra.Command, flags *buildFlags) error {
	spec, err := assembleSpec(cmd, flags)
	if err != nil {
		return err
	}
	return executeBuild(cmd.Context(), spec)
}

// assembleSpec merges flags, the optional defaults file, and the
// interactive prompt into a validated BuildSpec.
func assembleSpec(cmd *cobra.Command, flags *buildFlags) (*model.BuildSpec, error) {
	if flags.layerName == "" {
		return nil, model.NewCLIError(model.ExitGeneralError, "--layer-name is required")
	}

	rt, err := model.ParseRuntime(flags.runtime)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid --runtime", err)
	}

	archs := make([]model.Architecture, 0, len(flags.architectures))
	for _, s := range flags.architectures {
		arch, err := model.ParseArchitecture(s)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, "invalid --architectures", err)
		}
		archs = append(archs, arch)
	}

	spec := &model.BuildSpec{
		LayerName:        flags.layerName,
		Runtime:          rt,
		Region:           flags.region,
		Libraries:        flags.libraries,
		RequirementsFile: flags.requirementsFile,
		Description:      flags.description,
		Architectures:    archs,
		OutputPath:       flags.output,
		Upload:           !flags.noUpload,
		UseContainer:     flags.useContainer,
		PipPath:          flags.pip,
	}

	// Apply defaults-file values for flags the user did not set.
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	if err := applyDefaultsFile(spec, changed); err != nil {
		return nil, err
	}

	// Interactive fallback: with no dependency source at all, ask the
	// user, but only when stdin is actually a terminal.
	if len(spec.Libraries) == 0 && spec.RequirementsFile == "" {
		libraries, err := promptLibraries()
		if err != nil {
			return nil, err
		}
		spec.Libraries = libraries
	}

	if spec.RequirementsFile != "" {
		if _, err := os.Stat(spec.RequirementsFile); err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("requirements file %q not found", spec.RequirementsFile), err)
		}
	}

	if err := spec.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid build configuration", err)
	}
	return spec, nil
}

// applyDefaultsFile locates, loads, and applies the JSONC defaults
// file. A missing defaults file is only an error when the user pointed
// at one explicitly (--config or $LAYERPACK_CONFIG).
func applyDefaultsFile(spec *model.BuildSpec, changed map[string]bool) error {
	path, ok := config.Locate(configPath)
	if !ok {
		return nil
	}

	fileCfg, err := config.Load(path)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load defaults file", err)
	}
	log.Debug().Str("path", path).Msg("applying defaults file")

	if err := fileCfg.Apply(spec, changed); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid defaults file", err)
	}
	return nil
}

// resolveRegion returns the region an auxiliary command should use:
// the flag value when --region was set explicitly, else the defaults
// file's region when one applies, else the flag's default.
func resolveRegion(cmd *cobra.Command, flagValue string) (string, error) {
	if cmd.Flags().Changed("region") {
		return flagValue, nil
	}

	path, ok := config.Locate(configPath)
	if !ok {
		return flagValue, nil
	}

	fileCfg, err := config.Load(path)
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "failed to load defaults file", err)
	}
	if fileCfg.Region == "" {
		return flagValue, nil
	}

	log.Debug().Str("path", path).Str("region", fileCfg.Region).Msg("region from defaults file")
	return fileCfg.Region, nil
}

// promptLibraries asks the user for library names on stdin.
//
// When stdin is not a terminal (CI, pipes), prompting would hang or
// read garbage, so the missing-input error is returned immediately.
// An empty answer is also missing input; the process must exit
// non-zero without creating any output file.
func promptLibraries() ([]string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, model.NewCLIError(model.ExitMissingInput,
			"no libraries and no requirements file specified")
	}

	// The prompt goes to stderr so stdout stays clean for --json runs.
	fmt.Fprint(os.Stderr, "Please enter the pip library names (separated by spaces): ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return nil, model.WrapCLIError(model.ExitUserCancelled, "prompt cancelled", err)
	}

	libraries := strings.Fields(line)
	if len(libraries) == 0 {
		return nil, model.NewCLIError(model.ExitMissingInput,
			"no libraries and no requirements file specified")
	}
	return libraries, nil
}

// executeBuild runs the install → zip → publish pipeline for one spec.
// Shared by the root command and batch.
func executeBuild(ctx context.Context, spec *model.BuildSpec) error {
	// Temp directory for the install tree. The deferred removal covers
	// every exit path: success, installer failure, and upload failure.
	tempDir, err := os.MkdirTemp("", "layerpack-")
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to create temp directory", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tempDir); rmErr != nil {
			log.Warn().Err(rmErr).Str("dir", tempDir).Msg("failed to remove temp directory")
		}
	}()

	packageDir := filepath.Join(tempDir, spec.Runtime.LayerPrefix())
	if err := os.MkdirAll(packageDir, 0755); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to create package directory", err)
	}
	log.Debug().Str("dir", packageDir).Msg("created build directory")

	if err := installDependencies(ctx, spec, packageDir); err != nil {
		return err
	}

	log.Debug().Str("output", spec.OutputPath).Msg("creating layer archive")
	if err := archive.CreateZip(tempDir, spec.OutputPath); err != nil {
		return err
	}

	if entries, err := archive.ListEntries(spec.OutputPath); err == nil {
		log.Debug().
			Strs("packages", archive.TopLevelPackages(entries, spec.Runtime.LayerPrefix())).
			Int("entries", len(entries)).
			Msg("archive written")
	}

	if !spec.Upload {
		printLocalResult(spec)
		return nil
	}

	zipBytes, err := os.ReadFile(spec.OutputPath)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to read layer archive", err)
	}

	pub, err := newPublisher(ctx, spec.Region)
	if err != nil {
		return err
	}

	result, err := pub.PublishLayer(ctx, spec, zipBytes)
	if err != nil {
		// The archive stays on disk so the upload can be retried
		// (or re-run with --no-upload semantics) without rebuilding.
		fmt.Fprintf(os.Stderr, "Layer archive retained at: %s\n", spec.OutputPath)
		return err
	}

	printPublishResult(spec, result)
	return nil
}

// installDependencies materializes the dependency set into packageDir,
// on the host or in a SAM build container depending on the spec.
func installDependencies(ctx context.Context, spec *model.BuildSpec, packageDir string) error {
	if spec.UseContainer {
		return installInContainer(ctx, spec, packageDir)
	}

	installer, err := pip.NewInstaller(spec.PipPath, log)
	if err != nil {
		return err
	}
	log.Debug().Str("pip", installer.PipPath()).Msg("installing with host pip")

	if err := installer.InstallLibraries(ctx, spec.Libraries, packageDir); err != nil {
		return err
	}
	if spec.RequirementsFile != "" {
		if err := installer.InstallRequirements(ctx, spec.RequirementsFile, packageDir); err != nil {
			return err
		}
	}
	return nil
}

// installInContainer runs the installs inside the SAM build image for
// the spec's runtime. Bind mounts need absolute paths, so the package
// dir and requirements file are resolved before the container runs.
func installInContainer(ctx context.Context, spec *model.BuildSpec, packageDir string) error {
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}

	// Builders from interrupted runs are reaped best-effort; a reap
	// failure must not block the current build.
	if err := docker.ReapStale(ctx, cli, log); err != nil {
		log.Warn().Err(err).Msg("could not clean up stale builder containers")
	}

	absPackageDir, err := filepath.Abs(packageDir)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to resolve package directory", err)
	}

	builder := docker.NewBuilder(cli, spec.LayerName, log)
	if err := builder.InstallLibraries(ctx, spec.Runtime, spec.Libraries, absPackageDir); err != nil {
		return err
	}
	if spec.RequirementsFile != "" {
		absReqs, err := filepath.Abs(spec.RequirementsFile)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to resolve requirements file", err)
		}
		if err := builder.InstallRequirements(ctx, spec.Runtime, absReqs, absPackageDir); err != nil {
			return err
		}
	}
	return nil
}

// printLocalResult reports a --no-upload build in text or JSON.
func printLocalResult(spec *model.BuildSpec) {
	if IsJSONOutput() {
		printResultJSON(spec, nil)
		return
	}
	fmt.Printf("Lambda layer package created at: %s\n", spec.OutputPath)
}

// printPublishResult reports a successful upload in text or JSON.
func printPublishResult(spec *model.BuildSpec, result *model.PublishResult) {
	if IsJSONOutput() {
		printResultJSON(spec, result)
		return
	}
	fmt.Printf("Published layer %q version %d\n", spec.LayerName, result.Version)
	fmt.Printf("  ARN:     %s\n", result.LayerVersionArn)
	fmt.Printf("  Runtime: %s\n", spec.Runtime)
	fmt.Printf("  Archive: %s\n", spec.OutputPath)
}

// printResultJSON emits the machine-readable build report.
// The publish block is present only after a successful upload.
func printResultJSON(spec *model.BuildSpec, result *model.PublishResult) {
	printJSON(struct {
		LayerName string               `json:"layerName"`
		Runtime   string               `json:"runtime"`
		Archive   string               `json:"archive"`
		Publish   *model.PublishResult `json:"publish,omitempty"`
	}{
		LayerName: spec.LayerName,
		Runtime:   spec.Runtime.String(),
		Archive:   spec.OutputPath,
		Publish:   result,
	})
}
