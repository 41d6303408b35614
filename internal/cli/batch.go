package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/shinji-kodama/layerpack/internal/manifest"
	"github.com/shinji-kodama/layerpack/internal/model"
)

// batchFlags holds the flag values for the batch command. The shared
// fields act as defaults for every manifest layer that does not set
// its own value.
type batchFlags struct {
	manifestPath string // --manifest: YAML manifest path (required)
	runtime      string // --runtime: default runtime for all layers
	region       string // --region: region for all uploads
	noUpload     bool   // --no-upload: build all layers locally only
	useContainer bool   // --use-container: containerized pip for all layers
	pip          string // --pip: pip executable override
}

// NewBatchCommand creates the "batch" cobra command, which builds
// several layers sequentially from one YAML manifest.
func NewBatchCommand() *cobra.Command {
	flags := &batchFlags{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Build multiple Lambda layers from a YAML manifest",
		Long: `Build several Lambda layers in one run, driven by a YAML manifest.

Each manifest entry names a layer and its dependency sources; per-layer
fields override the command-line defaults. Layers are built in manifest
order and the run stops at the first failure, so already-published
versions from earlier entries remain in place.`,
		Example: `  layerpack batch --manifest layers.yaml
  layerpack batch --manifest layers.yaml --region eu-west-1 --no-upload`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.manifestPath, "manifest", "", "Path to the YAML layer manifest (required)")
	cmd.Flags().StringVar(&flags.runtime, "runtime", string(model.DefaultRuntime),
		"Default runtime for layers that do not set one")
	cmd.Flags().StringVar(&flags.region, "region", "us-east-1", "AWS region to publish the layers in")
	cmd.Flags().BoolVar(&flags.noUpload, "no-upload", false, "Build the layer archives without uploading")
	cmd.Flags().BoolVar(&flags.useContainer, "use-container", false,
		"Run pip inside the SAM build image matching each layer's runtime")
	cmd.Flags().StringVar(&flags.pip, "pip", "", "Pip executable to use (default pip3, then pip)")

	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

// runBatch loads the manifest and builds each layer in order, stopping
// at the first failure.
func runBatch(cmd *cobra.Command, flags *batchFlags) error {
	ctx := cmd.Context()

	rt, err := model.ParseRuntime(flags.runtime)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid --runtime", err)
	}

	m, err := manifest.Load(flags.manifestPath)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load manifest", err)
	}

	defaults := model.BuildSpec{
		Runtime:      rt,
		Region:       flags.region,
		Upload:       !flags.noUpload,
		UseContainer: flags.useContainer,
		PipPath:      flags.pip,
	}

	// The defaults file sits below the command-line defaults, exactly
	// as on the root command: file values fill in only the fields whose
	// flags were not set, and per-layer manifest fields override both.
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	if err := applyDefaultsFile(&defaults, changed); err != nil {
		return err
	}

	for i, layer := range m.Layers {
		spec, err := layer.ToBuildSpec(defaults)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "invalid manifest", err)
		}

		if !IsJSONOutput() {
			fmt.Printf("[%d/%d] Building layer %q\n", i+1, len(m.Layers), spec.LayerName)
		}
		log.Debug().Str("layer", spec.LayerName).Msg("starting manifest build")

		if err := executeBuild(ctx, &spec); err != nil {
			// The underlying CLIError keeps its exit code; the stop
			// point is reported separately so partial progress is clear.
			log.Error().Str("layer", spec.LayerName).
				Msgf("manifest build stopped at layer %d of %d", i+1, len(m.Layers))
			return err
		}
	}

	return nil
}
