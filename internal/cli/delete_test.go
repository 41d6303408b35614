package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/layerpack/internal/model"
)

// fakeDeleter records the delete call it receives.
type fakeDeleter struct {
	layerName string
	version   int64
	region    string
	err       error
}

func (f *fakeDeleter) DeleteVersion(ctx context.Context, layerName string, version int64) error {
	f.layerName = layerName
	f.version = version
	return f.err
}

// swapDeleter installs a deleter factory for the duration of the test.
func swapDeleter(t *testing.T, fake *fakeDeleter) {
	t.Helper()

	orig := newLayerDeleter
	t.Cleanup(func() { newLayerDeleter = orig })

	newLayerDeleter = func(ctx context.Context, region string) (layerDeleter, error) {
		fake.region = region
		return fake, nil
	}
}

// TestDelete_Force verifies the delete call with --force, which skips
// the confirmation prompt.
func TestDelete_Force(t *testing.T) {
	fake := &fakeDeleter{}
	swapDeleter(t, fake)

	err := runRoot(t, "delete", "--force", "http-deps", "3")
	require.NoError(t, err)

	assert.Equal(t, "http-deps", fake.layerName)
	assert.Equal(t, int64(3), fake.version)
}

// TestDelete_InvalidVersion verifies that non-numeric and non-positive
// version arguments are rejected before any client is constructed.
func TestDelete_InvalidVersion(t *testing.T) {
	for _, version := range []string{"abc", "0", "-1", "1.5"} {
		err := runRoot(t, "delete", "--force", "http-deps", version)
		require.Error(t, err, "version %q must be rejected", version)
		assert.Contains(t, err.Error(), "invalid version")
	}
}

// TestDelete_InvalidLayerName verifies layer name validation.
func TestDelete_InvalidLayerName(t *testing.T) {
	err := runRoot(t, "delete", "--force", "bad name!", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid layer name")
}

// TestDelete_Declined verifies that with stdin closed (no confirmation
// possible) the command cancels instead of deleting.
func TestDelete_Declined(t *testing.T) {
	fake := &fakeDeleter{}
	swapDeleter(t, fake)

	// Without --force the prompt reads stdin, which yields no input
	// under `go test`; the default answer is "no".
	err := runRoot(t, "delete", "http-deps", "3")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitUserCancelled, cliErr.Code)
	assert.Empty(t, fake.layerName, "nothing may be deleted without confirmation")
}

// TestDelete_RegionFromDefaultsFile verifies that a layerpack.jsonc in
// the working directory supplies the region when --region is not set.
func TestDelete_RegionFromDefaultsFile(t *testing.T) {
	workDir := t.TempDir()
	t.Chdir(workDir)

	cfg := `{"region": "ap-northeast-1"}`
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "layerpack.jsonc"), []byte(cfg), 0644))

	fake := &fakeDeleter{}
	swapDeleter(t, fake)

	require.NoError(t, runRoot(t, "delete", "--force", "http-deps", "3"))
	assert.Equal(t, "ap-northeast-1", fake.region, "file region applies when the flag is unset")

	require.NoError(t, runRoot(t, "delete", "--force", "http-deps", "3", "--region", "eu-west-1"))
	assert.Equal(t, "eu-west-1", fake.region, "explicit flag beats the file")
}

// TestDelete_PromptOnStderr verifies that the confirmation prompt does
// not pollute stdout, which must stay clean for --json consumers.
func TestDelete_PromptOnStderr(t *testing.T) {
	fake := &fakeDeleter{}
	swapDeleter(t, fake)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	origStdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	// Stdin yields no input under `go test`, so the prompt declines.
	runErr := runRoot(t, "delete", "http-deps", "3")

	require.NoError(t, w.Close())
	os.Stdout = origStdout
	captured, err := io.ReadAll(r)
	require.NoError(t, err)

	require.Error(t, runErr)
	assert.NotContains(t, string(captured), "Continue?", "prompt must go to stderr, not stdout")
}

// TestDelete_APIError verifies that deletion failures keep their
// exit code.
func TestDelete_APIError(t *testing.T) {
	fake := &fakeDeleter{
		err: model.NewCLIError(model.ExitUploadFailed, "access denied"),
	}
	swapDeleter(t, fake)

	err := runRoot(t, "delete", "--force", "http-deps", "3")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitUploadFailed, cliErr.Code)
}
