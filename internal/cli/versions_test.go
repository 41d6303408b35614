package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/layerpack/internal/model"
)

// fakeLister returns a canned version listing and records the query.
type fakeLister struct {
	layerName string
	region    string
	versions  []model.LayerVersionInfo
	err       error
}

func (f *fakeLister) ListVersions(ctx context.Context, layerName string) ([]model.LayerVersionInfo, error) {
	f.layerName = layerName
	return f.versions, f.err
}

// swapLister installs a lister factory for the duration of the test.
func swapLister(t *testing.T, fake *fakeLister) {
	t.Helper()

	orig := newLayerLister
	t.Cleanup(func() { newLayerLister = orig })

	newLayerLister = func(ctx context.Context, region string) (layerLister, error) {
		fake.region = region
		return fake, nil
	}
}

// TestVersions verifies that the command queries the named layer in the
// requested region.
func TestVersions(t *testing.T) {
	fake := &fakeLister{
		versions: []model.LayerVersionInfo{
			{Version: 2, LayerVersionArn: "arn:aws:lambda:eu-west-1:123456789012:layer:http-deps:2"},
			{Version: 1, LayerVersionArn: "arn:aws:lambda:eu-west-1:123456789012:layer:http-deps:1"},
		},
	}
	swapLister(t, fake)

	err := runRoot(t, "versions", "http-deps", "--region", "eu-west-1")
	require.NoError(t, err)

	assert.Equal(t, "http-deps", fake.layerName)
	assert.Equal(t, "eu-west-1", fake.region)
}

// TestVersions_RegionFromDefaultsFile verifies that a layerpack.jsonc
// in the working directory supplies the region when --region is not
// set, and that an explicit flag still wins.
func TestVersions_RegionFromDefaultsFile(t *testing.T) {
	workDir := t.TempDir()
	t.Chdir(workDir)

	cfg := `{"region": "ap-northeast-1"}`
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "layerpack.jsonc"), []byte(cfg), 0644))

	fake := &fakeLister{}
	swapLister(t, fake)

	require.NoError(t, runRoot(t, "versions", "http-deps"))
	assert.Equal(t, "ap-northeast-1", fake.region, "file region applies when the flag is unset")

	require.NoError(t, runRoot(t, "versions", "http-deps", "--region", "eu-west-1"))
	assert.Equal(t, "eu-west-1", fake.region, "explicit flag beats the file")
}

// TestVersions_InvalidLayerName verifies name validation happens before
// any client is constructed.
func TestVersions_InvalidLayerName(t *testing.T) {
	constructed := false
	orig := newLayerLister
	t.Cleanup(func() { newLayerLister = orig })
	newLayerLister = func(ctx context.Context, region string) (layerLister, error) {
		constructed = true
		return &fakeLister{}, nil
	}

	err := runRoot(t, "versions", "bad name!")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid layer name")
	assert.False(t, constructed)
}

// TestVersions_APIError verifies that listing failures keep their
// exit code.
func TestVersions_APIError(t *testing.T) {
	fake := &fakeLister{
		err: model.NewCLIError(model.ExitUploadFailed, "access denied"),
	}
	swapLister(t, fake)

	err := runRoot(t, "versions", "http-deps")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitUploadFailed, cliErr.Code)
}
