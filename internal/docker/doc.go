// Package docker runs containerized pip installs for --use-container
// builds.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Pulling the AWS SAM build image matching the target runtime
//   - One-shot builder containers that pip-install into the bind-
//     mounted build directory
//   - Label-based discovery and removal of builder containers left
//     behind by interrupted runs
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
