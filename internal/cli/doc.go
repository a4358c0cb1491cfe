// Package cli defines the Cobra command tree for the dev CLI. The root
// command hands its first argument to the DevCom dispatcher; the few
// commands that manage the CLI itself (version, config) are registered
// here as ordinary subcommands.
package cli
