// Package lambda provides a wrapper around the AWS Lambda SDK client
// for publishing, listing, and deleting layer versions.
//
// The primary purpose of this package is to abstract the SDK calls
// behind a small surface that speaks the domain types from
// internal/model, and to keep the SDK substitutable in tests.
package lambda

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/shinji-kodama/layerpack/internal/model"
)

// LayerAPI is the subset of the AWS Lambda service API used by
// layerpack. *awslambda.Client satisfies it; tests substitute a fake
// so no command path ever needs network access under test.
type LayerAPI interface {
	PublishLayerVersion(ctx context.Context, params *awslambda.PublishLayerVersionInput,
		optFns ...func(*awslambda.Options)) (*awslambda.PublishLayerVersionOutput, error)
	ListLayerVersions(ctx context.Context, params *awslambda.ListLayerVersionsInput,
		optFns ...func(*awslambda.Options)) (*awslambda.ListLayerVersionsOutput, error)
	DeleteLayerVersion(ctx context.Context, params *awslambda.DeleteLayerVersionInput,
		optFns ...func(*awslambda.Options)) (*awslambda.DeleteLayerVersionOutput, error)
}

// Client wraps the AWS Lambda SDK client for layer operations.
type Client struct {
	api LayerAPI
}

// NewClient creates a Client bound to the given region using the
// standard AWS credential chain (environment, shared config files,
// instance metadata). Credentials are supplied externally; the tool
// never manages them itself.
//
// Returns a model.CLIError with ExitUploadFailed if the shared
// configuration cannot be loaded, since a broken credential setup
// surfaces here before any API call is made.
func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitUploadFailed,
			fmt.Sprintf("failed to load AWS configuration for region %q", region),
			err,
		)
	}

	return &Client{api: awslambda.NewFromConfig(cfg)}, nil
}

// NewClientWithAPI creates a Client backed by the given API
// implementation. Used by tests to inject a fake.
func NewClientWithAPI(api LayerAPI) *Client {
	return &Client{api: api}
}
