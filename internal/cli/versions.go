package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/layerpack/internal/lambda"
	"github.com/shinji-kodama/layerpack/internal/model"
)

// layerLister abstracts the version-listing client so tests can
// substitute a fake.
type layerLister interface {
	ListVersions(ctx context.Context, layerName string) ([]model.LayerVersionInfo, error)
}

// newLayerLister constructs the real AWS-backed lister.
// Swapped out in tests.
var newLayerLister = func(ctx context.Context, region string) (layerLister, error) {
	return lambda.NewClient(ctx, region)
}

// NewVersionsCommand creates the "versions" command, which lists the
// published versions of a layer, newest first.
func NewVersionsCommand() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "versions <layer-name>",
		Short: "List published versions of a Lambda layer",
		Long: `List all published versions of a Lambda layer, newest first,
with their version numbers, ARNs, descriptions, and creation dates.`,
		Example: `  layerpack versions http-deps
  layerpack versions http-deps --region eu-west-1 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveRegion(cmd, region)
			if err != nil {
				return err
			}
			return runVersions(cmd.Context(), args[0], resolved)
		},
	}

	cmd.Flags().StringVar(&region, "region", "us-east-1", "AWS region to query")

	return cmd
}

// runVersions fetches and prints the version listing.
func runVersions(ctx context.Context, layerName, region string) error {
	if err := model.ValidateLayerName(layerName); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid layer name", err)
	}

	client, err := newLayerLister(ctx, region)
	if err != nil {
		return err
	}

	versions, err := client.ListVersions(ctx, layerName)
	if err != nil {
		return err
	}

	printVersions(layerName, versions)
	return nil
}

// printVersions renders the listing in text or JSON.
func printVersions(layerName string, versions []model.LayerVersionInfo) {
	if IsJSONOutput() {
		printJSON(struct {
			LayerName string                   `json:"layerName"`
			Versions  []model.LayerVersionInfo `json:"versions"`
		}{LayerName: layerName, Versions: versions})
		return
	}

	if len(versions) == 0 {
		fmt.Printf("No published versions found for layer %q\n", layerName)
		return
	}

	fmt.Printf("Versions of layer %q:\n", layerName)
	for _, v := range versions {
		fmt.Printf("  %d\t%s\n", v.Version, v.LayerVersionArn)
		if v.Description != "" {
			fmt.Printf("  \tdescription: %s\n", v.Description)
		}
		if v.CreatedDate != "" {
			fmt.Printf("  \tcreated:     %s\n", v.CreatedDate)
		}
	}
}
