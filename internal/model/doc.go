// Package model defines the domain types and value objects for the
// layerpack CLI.
//
// This package contains pure data structures with no external
// dependencies. The central type is BuildSpec, the in-memory
// configuration record assembled from flags, the optional defaults
// file, and the interactive prompt, plus the typed Runtime and
// Architecture identifiers and the PublishResult returned by the
// layer-publishing API.
//
// The package also defines exit codes (ExitCode) and a custom error
// type (CLIError) that carries exit codes for proper OS process exit
// handling.
package model
