package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/layerpack/internal/lambda"
	"github.com/shinji-kodama/layerpack/internal/model"
)

// layerDeleter abstracts the version-deleting client so tests can
// substitute a fake.
type layerDeleter interface {
	DeleteVersion(ctx context.Context, layerName string, version int64) error
}

// newLayerDeleter constructs the real AWS-backed deleter.
// Swapped out in tests.
var newLayerDeleter = func(ctx context.Context, region string) (layerDeleter, error) {
	return lambda.NewClient(ctx, region)
}

// deleteFlags holds the flag values for the delete command.
type deleteFlags struct {
	// force skips the interactive confirmation prompt when true.
	force bool

	// region is the AWS region holding the layer.
	region string
}

// NewDeleteCommand creates the "delete" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewDeleteCommand() *cobra.Command {
	flags := &deleteFlags{}

	cmd := &cobra.Command{
		Use:   "delete <layer-name> <version>",
		Short: "Delete a published Lambda layer version",
		Long: `Delete one published version of a Lambda layer.

Functions already configured with the deleted version keep running;
the version just cannot be attached to new functions afterwards.

Unless --force is specified, the command prompts for confirmation.`,
		Example: `  layerpack delete http-deps 3
  layerpack delete --force http-deps 3 --region eu-west-1`,

		Args: cobra.ExactArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveRegion(cmd, flags.region)
			if err != nil {
				return err
			}
			flags.region = resolved
			return runDelete(cmd.Context(), args[0], args[1], flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Delete without confirmation")
	cmd.Flags().StringVar(&flags.region, "region", "us-east-1", "AWS region holding the layer")

	return cmd
}

// runDelete validates the arguments, optionally prompts for
// confirmation, and deletes the layer version.
func runDelete(ctx context.Context, layerName, versionArg string, flags *deleteFlags) error {
	if err := model.ValidateLayerName(layerName); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid layer name", err)
	}

	version, err := strconv.ParseInt(versionArg, 10, 64)
	if err != nil || version < 1 {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("invalid version %q: expected a positive integer", versionArg))
	}

	if !flags.force {
		confirmed, err := promptDeleteConfirmation(layerName, version)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to read user input", err)
		}
		if !confirmed {
			return model.NewCLIError(model.ExitUserCancelled, "operation cancelled by user")
		}
	}

	client, err := newLayerDeleter(ctx, flags.region)
	if err != nil {
		return err
	}
	if err := client.DeleteVersion(ctx, layerName, version); err != nil {
		return err
	}

	printDeleteResult(layerName, version)
	return nil
}

// promptDeleteConfirmation asks the user to confirm the deletion.
// Returns true only for an explicit "y"/"yes" answer.
//
// The prompt goes to stderr so stdout stays clean for --json consumers.
func promptDeleteConfirmation(layerName string, version int64) (bool, error) {
	fmt.Fprintf(os.Stderr, "About to delete version %d of layer %q.\n", version, layerName)
	fmt.Fprint(os.Stderr, "\nContinue? [y/N] ")

	// Read a line from stdin. bufio.Scanner handles different line endings
	// across platforms (LF on Unix, CRLF on Windows).
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}

	// If stdin is closed or an error occurred, treat it as "no".
	if err := scanner.Err(); err != nil {
		return false, err
	}

	return false, nil
}

// printDeleteResult outputs the delete result in text or JSON format.
func printDeleteResult(layerName string, version int64) {
	if IsJSONOutput() {
		printJSON(struct {
			LayerName string `json:"layerName"`
			Version   int64  `json:"version"`
			Deleted   bool   `json:"deleted"`
		}{LayerName: layerName, Version: version, Deleted: true})
		return
	}
	fmt.Printf("Deleted version %d of layer %q\n", version, layerName)
}
