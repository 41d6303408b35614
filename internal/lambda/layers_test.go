package lambda

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/layerpack/internal/model"
)

// fakeLayerAPI records the inputs of each call and returns canned
// outputs or errors. It stands in for the AWS Lambda service client
// so tests never touch the network.
type fakeLayerAPI struct {
	publishInputs []*awslambda.PublishLayerVersionInput
	publishOut    *awslambda.PublishLayerVersionOutput
	publishErr    error

	listInputs []*awslambda.ListLayerVersionsInput
	listOuts   []*awslambda.ListLayerVersionsOutput
	listErr    error

	deleteInputs []*awslambda.DeleteLayerVersionInput
	deleteErr    error
}

func (f *fakeLayerAPI) PublishLayerVersion(_ context.Context, params *awslambda.PublishLayerVersionInput,
	_ ...func(*awslambda.Options)) (*awslambda.PublishLayerVersionOutput, error) {
	f.publishInputs = append(f.publishInputs, params)
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	return f.publishOut, nil
}

func (f *fakeLayerAPI) ListLayerVersions(_ context.Context, params *awslambda.ListLayerVersionsInput,
	_ ...func(*awslambda.Options)) (*awslambda.ListLayerVersionsOutput, error) {
	f.listInputs = append(f.listInputs, params)
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := f.listOuts[0]
	f.listOuts = f.listOuts[1:]
	return out, nil
}

func (f *fakeLayerAPI) DeleteLayerVersion(_ context.Context, params *awslambda.DeleteLayerVersionInput,
	_ ...func(*awslambda.Options)) (*awslambda.DeleteLayerVersionOutput, error) {
	f.deleteInputs = append(f.deleteInputs, params)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &awslambda.DeleteLayerVersionOutput{}, nil
}

// TestPublishLayer verifies that the provider call carries the layer
// name exactly as given, the zip bytes, the derived description, and
// the compatible runtime, and that the response maps to PublishResult.
func TestPublishLayer(t *testing.T) {
	fake := &fakeLayerAPI{
		publishOut: &awslambda.PublishLayerVersionOutput{
			LayerArn:        aws.String("arn:aws:lambda:us-east-1:123456789012:layer:my-deps"),
			LayerVersionArn: aws.String("arn:aws:lambda:us-east-1:123456789012:layer:my-deps:3"),
			Version:         3,
		},
	}
	client := NewClientWithAPI(fake)

	spec := &model.BuildSpec{
		LayerName: "my-deps",
		Runtime:   model.Runtime("python3.10"),
		Region:    "us-east-1",
		Libraries: []string{"requests"},
	}
	zipBytes := []byte("PK\x03\x04fake")

	result, err := client.PublishLayer(context.Background(), spec, zipBytes)
	require.NoError(t, err)

	require.Len(t, fake.publishInputs, 1)
	input := fake.publishInputs[0]

	// The reported layer name must equal the requested name exactly.
	assert.Equal(t, "my-deps", aws.ToString(input.LayerName))
	assert.Equal(t, zipBytes, input.Content.ZipFile)
	assert.Equal(t, "Lambda layer for requests", aws.ToString(input.Description))
	assert.Equal(t, []lambdatypes.Runtime{lambdatypes.Runtime("python3.10")}, input.CompatibleRuntimes)
	assert.Nil(t, input.CompatibleArchitectures, "architectures must be omitted when unset")

	assert.Equal(t, int64(3), result.Version)
	assert.Equal(t, "arn:aws:lambda:us-east-1:123456789012:layer:my-deps:3", result.LayerVersionArn)
}

// TestPublishLayer_Architectures verifies that explicit architectures
// are forwarded to the API.
func TestPublishLayer_Architectures(t *testing.T) {
	fake := &fakeLayerAPI{publishOut: &awslambda.PublishLayerVersionOutput{Version: 1}}
	client := NewClientWithAPI(fake)

	spec := &model.BuildSpec{
		LayerName:     "my-deps",
		Runtime:       model.Runtime("python3.12"),
		Libraries:     []string{"numpy"},
		Architectures: []model.Architecture{model.ArchARM64},
	}

	_, err := client.PublishLayer(context.Background(), spec, []byte("zip"))
	require.NoError(t, err)

	require.Len(t, fake.publishInputs, 1)
	assert.Equal(t, []lambdatypes.Architecture{lambdatypes.Architecture("arm64")},
		fake.publishInputs[0].CompatibleArchitectures)
}

// TestPublishLayer_Failure verifies that provider errors are wrapped
// with the upload exit code and the layer name in the message.
func TestPublishLayer_Failure(t *testing.T) {
	fake := &fakeLayerAPI{publishErr: errors.New("AccessDeniedException: not authorized")}
	client := NewClientWithAPI(fake)

	spec := &model.BuildSpec{LayerName: "my-deps", Runtime: "python3.10", Libraries: []string{"requests"}}
	_, err := client.PublishLayer(context.Background(), spec, []byte("zip"))

	require.Error(t, err)
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitUploadFailed, cliErr.Code)
	assert.Contains(t, err.Error(), "my-deps")
	assert.Contains(t, err.Error(), "AccessDeniedException")
}

// TestListVersions verifies domain mapping and pagination across
// multiple pages of ListLayerVersions results.
func TestListVersions(t *testing.T) {
	fake := &fakeLayerAPI{
		listOuts: []*awslambda.ListLayerVersionsOutput{
			{
				LayerVersions: []lambdatypes.LayerVersionsListItem{
					{
						Version:            2,
						LayerVersionArn:    aws.String("arn:...:my-deps:2"),
						Description:        aws.String("second"),
						CreatedDate:        aws.String("2026-08-01T12:00:00.000+0000"),
						CompatibleRuntimes: []lambdatypes.Runtime{"python3.10"},
					},
				},
				NextMarker: aws.String("page2"),
			},
			{
				LayerVersions: []lambdatypes.LayerVersionsListItem{
					{Version: 1, LayerVersionArn: aws.String("arn:...:my-deps:1")},
				},
			},
		},
	}
	client := NewClientWithAPI(fake)

	versions, err := client.ListVersions(context.Background(), "my-deps")
	require.NoError(t, err)

	require.Len(t, versions, 2)
	assert.Equal(t, int64(2), versions[0].Version)
	assert.Equal(t, "second", versions[0].Description)
	assert.Equal(t, []string{"python3.10"}, versions[0].CompatibleRuntimes)
	assert.Equal(t, int64(1), versions[1].Version)

	// The second request must carry the pagination marker.
	require.Len(t, fake.listInputs, 2)
	assert.Nil(t, fake.listInputs[0].Marker)
	assert.Equal(t, "page2", aws.ToString(fake.listInputs[1].Marker))
}

// TestDeleteVersion verifies the delete call parameters and error wrapping.
func TestDeleteVersion(t *testing.T) {
	fake := &fakeLayerAPI{}
	client := NewClientWithAPI(fake)

	err := client.DeleteVersion(context.Background(), "my-deps", 4)
	require.NoError(t, err)

	require.Len(t, fake.deleteInputs, 1)
	assert.Equal(t, "my-deps", aws.ToString(fake.deleteInputs[0].LayerName))
	assert.Equal(t, int64(4), aws.ToInt64(fake.deleteInputs[0].VersionNumber))

	fake.deleteErr = errors.New("ResourceNotFoundException")
	err = client.DeleteVersion(context.Background(), "my-deps", 99)
	require.Error(t, err)
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitUploadFailed, cliErr.Code)
}
