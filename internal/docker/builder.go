// builder.go runs pip inside an AWS SAM build container. The SAM build
// images mirror the Lambda execution environment, so packages with
// compiled extensions (numpy, cryptography, ...) come out binary-
// compatible with Lambda even when the host is a different OS or libc.
//
// Each install is a one-shot container: create with the target
// directory bind-mounted, start, wait for exit, collect logs, remove.
// Builders left behind by interrupted runs are identified via labels
// and reaped before the next build.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"

	"github.com/shinji-kodama/layerpack/internal/model"
)

// containerTarget is where the host build directory's python/ subtree
// is bind-mounted inside the builder, and therefore the --target of
// every containerized pip install.
const containerTarget = "/var/layerpack/python"

// containerRequirements is where the requirements file is bind-mounted
// (read-only) when installing from a requirements file.
const containerRequirements = "/var/layerpack/requirements.txt"

// Builder runs pip installs inside SAM build containers.
type Builder struct {
	cli *Client

	// layerName is recorded on builder labels for attribution.
	layerName string

	log zerolog.Logger
}

// NewBuilder creates a Builder that uses the given Docker client.
func NewBuilder(cli *Client, layerName string, log zerolog.Logger) *Builder {
	return &Builder{cli: cli, layerName: layerName, log: log}
}

// InstallLibraries installs each library specifier into targetDir by
// running pip inside the SAM build image for rt. Mirrors the host
// installer's one-invocation-per-library behavior so a bad specifier
// is reported precisely.
func (b *Builder) InstallLibraries(ctx context.Context, rt model.Runtime, libraries []string, targetDir string) error {
	for _, lib := range libraries {
		cmd := []string{"pip", "install", lib, "--target", containerTarget}
		binds := []string{targetDir + ":" + containerTarget}
		if err := b.runPip(ctx, rt, fmt.Sprintf("install %q failed", lib), cmd, binds); err != nil {
			return err
		}
	}
	return nil
}

// InstallRequirements installs the entries of requirementsFile into
// targetDir inside the SAM build image for rt. The requirements file
// is bind-mounted read-only into the container.
func (b *Builder) InstallRequirements(ctx context.Context, rt model.Runtime, requirementsFile, targetDir string) error {
	cmd := []string{"pip", "install", "-r", containerRequirements, "--target", containerTarget}
	binds := []string{
		targetDir + ":" + containerTarget,
		requirementsFile + ":" + containerRequirements + ":ro",
	}
	return b.runPip(ctx, rt, fmt.Sprintf("install from %q failed", requirementsFile), cmd, binds)
}

// runPip executes one pip command in a fresh builder container and
// removes the container afterwards. Non-zero pip exits are mapped to
// ExitPipFailed with the container logs folded into the message, so
// failures read the same whether pip ran on the host or in Docker.
func (b *Builder) runPip(ctx context.Context, rt model.Runtime, failMsg string, cmd, binds []string) error {
	if err := b.ensureImage(ctx, rt); err != nil {
		return err
	}

	b.log.Debug().Str("image", rt.BuildImage()).Strs("cmd", cmd).Msg("running containerized pip")

	created, err := b.cli.Inner().ContainerCreate(ctx,
		&container.Config{
			Image:  rt.BuildImage(),
			Cmd:    cmd,
			Labels: BuildLabels(b.layerName, rt),
		},
		&container.HostConfig{Binds: binds},
		nil, nil, "")
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create builder container from %q", rt.BuildImage()),
			err,
		)
	}
	id := created.ID

	// Remove the builder whichever way this function exits; the reaper
	// catches the cases where even this removal is interrupted.
	defer func() {
		_ = b.cli.Inner().ContainerRemove(context.WithoutCancel(ctx), id,
			container.RemoveOptions{Force: true})
	}()

	if err := b.cli.Inner().ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start builder container %q", id),
			err,
		)
	}

	// Wait for pip to finish. WaitConditionNotRunning fires on any
	// exit, success or failure.
	statusCh, errCh := b.cli.Inner().ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed waiting for builder container %q", id),
			err,
		)
	case status := <-statusCh:
		logs := b.collectLogs(ctx, id)
		if status.StatusCode != 0 {
			return model.WrapCLIError(
				model.ExitPipFailed,
				fmt.Sprintf("pip %s (exit %d): %s", failMsg, status.StatusCode, strings.TrimSpace(logs)),
				nil,
			)
		}
		b.log.Debug().Str("container", id).Msg("containerized pip completed")
		return nil
	}
}

// ensureImage pulls the SAM build image for rt. The pull is a no-op
// when the image is already present, but the response stream must be
// drained either way for the pull to complete.
func (b *Builder) ensureImage(ctx context.Context, rt model.Runtime) error {
	ref := rt.BuildImage()
	b.log.Debug().Str("image", ref).Msg("pulling build image")

	reader, err := b.cli.Inner().ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to pull build image %q", ref),
			err,
		)
	}
	defer func() { _ = reader.Close() }()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed while pulling build image %q", ref),
			err,
		)
	}
	return nil
}

// collectLogs fetches a builder container's combined output. Docker
// multiplexes stdout/stderr on one stream; stdcopy demultiplexes it.
// Log collection is best-effort; an empty string is returned on error
// since logs only enrich failure messages.
func (b *Builder) collectLogs(ctx context.Context, id string) string {
	reader, err := b.cli.Inner().ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return ""
	}
	defer func() { _ = reader.Close() }()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil {
		return ""
	}
	return buf.String()
}

// ReapStale removes builder containers left behind by interrupted
// runs. It lists all containers carrying layerpack's management label
// and force-removes any that are no longer running.
//
// Called once before a container build starts. Failures are returned
// so the caller can log them, but a reap failure is not fatal to the
// build itself.
func ReapStale(ctx context.Context, cli *Client, log zerolog.Logger) error {
	filterArgs := filters.NewArgs(filters.Arg("label", ManagedFilterArg()))

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return fmt.Errorf("failed to list layerpack builder containers: %w", err)
	}

	for _, c := range containers {
		if c.State == "running" {
			continue
		}
		log.Debug().Str("container", c.ID).Str("layer", c.Labels[LabelLayer]).
			Msg("removing stale builder container")
		if err := cli.Inner().ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			return fmt.Errorf("failed to remove stale builder %q: %w", c.ID, err)
		}
	}
	return nil
}
