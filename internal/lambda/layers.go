// layers.go implements the layer version operations: publish, list,
// and delete. Each function converts between internal/model domain
// types and the AWS SDK input/output structs, and wraps failures in
// model.CLIError so the CLI layer can map them to exit codes.
package lambda

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/shinji-kodama/layerpack/internal/model"
)

// PublishLayer publishes zipBytes as a new version of the layer named
// in the spec, carrying the spec's description, compatible runtime,
// and (when present) compatible architectures.
//
// The layer name is passed through exactly as given; the provider's
// response is the authority on the assigned version number and ARNs.
func (c *Client) PublishLayer(ctx context.Context, spec *model.BuildSpec, zipBytes []byte) (*model.PublishResult, error) {
	input := &awslambda.PublishLayerVersionInput{
		LayerName:   aws.String(spec.LayerName),
		Description: aws.String(spec.DefaultDescription()),
		Content: &lambdatypes.LayerVersionContentInput{
			ZipFile: zipBytes,
		},
		CompatibleRuntimes: []lambdatypes.Runtime{
			lambdatypes.Runtime(spec.Runtime.String()),
		},
	}

	// CompatibleArchitectures is optional in the API; omit the field
	// entirely when the user did not constrain architectures.
	if len(spec.Architectures) > 0 {
		archs := make([]lambdatypes.Architecture, 0, len(spec.Architectures))
		for _, a := range spec.Architectures {
			archs = append(archs, lambdatypes.Architecture(a.String()))
		}
		input.CompatibleArchitectures = archs
	}

	out, err := c.api.PublishLayerVersion(ctx, input)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitUploadFailed,
			fmt.Sprintf("failed to publish layer version for %q", spec.LayerName),
			err,
		)
	}

	return &model.PublishResult{
		LayerArn:        aws.ToString(out.LayerArn),
		LayerVersionArn: aws.ToString(out.LayerVersionArn),
		Version:         out.Version,
	}, nil
}

// ListVersions returns all published versions of the named layer,
// newest first (the API's native order), following pagination markers
// until the listing is exhausted.
func (c *Client) ListVersions(ctx context.Context, layerName string) ([]model.LayerVersionInfo, error) {
	var versions []model.LayerVersionInfo
	var marker *string

	for {
		out, err := c.api.ListLayerVersions(ctx, &awslambda.ListLayerVersionsInput{
			LayerName: aws.String(layerName),
			Marker:    marker,
		})
		if err != nil {
			return nil, model.WrapCLIError(
				model.ExitUploadFailed,
				fmt.Sprintf("failed to list versions of layer %q", layerName),
				err,
			)
		}

		for _, v := range out.LayerVersions {
			versions = append(versions, versionToInfo(v))
		}

		if out.NextMarker == nil || *out.NextMarker == "" {
			return versions, nil
		}
		marker = out.NextMarker
	}
}

// DeleteVersion deletes one specific version of the named layer.
// Functions already configured with the deleted version keep working;
// the version just cannot be attached to new functions.
func (c *Client) DeleteVersion(ctx context.Context, layerName string, version int64) error {
	_, err := c.api.DeleteLayerVersion(ctx, &awslambda.DeleteLayerVersionInput{
		LayerName:     aws.String(layerName),
		VersionNumber: aws.Int64(version),
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitUploadFailed,
			fmt.Sprintf("failed to delete version %d of layer %q", version, layerName),
			err,
		)
	}
	return nil
}

// versionToInfo converts an SDK layer version list item to the domain
// model. This is a pure mapping function with no side effects.
func versionToInfo(v lambdatypes.LayerVersionsListItem) model.LayerVersionInfo {
	runtimes := make([]string, 0, len(v.CompatibleRuntimes))
	for _, rt := range v.CompatibleRuntimes {
		runtimes = append(runtimes, string(rt))
	}

	return model.LayerVersionInfo{
		Version:            v.Version,
		LayerVersionArn:    aws.ToString(v.LayerVersionArn),
		Description:        aws.ToString(v.Description),
		CreatedDate:        aws.ToString(v.CreatedDate),
		CompatibleRuntimes: runtimes,
	}
}
