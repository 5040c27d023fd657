// Package upstream contains the static descriptor type for a configured
// MCP upstream server (a child process speaking framed JSON-RPC over
// stdio). Descriptors are immutable once constructed; runtime state
// (connection status, pending requests) lives on the upstreamclient.Client
// that owns the process, not here.
package upstream

import (
	"fmt"
	"regexp"
	"time"
)

// namePattern restricts upstream names to values that are safe to use as
// env-var prefixes and registry keys: alphanumeric, hyphens, underscores.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const nameMaxLength = 64

// Descriptor identifies one upstream MCP server and how to launch it.
// Name is drawn from a closed set of upstream identifiers known to the
// registry; it is never derived from user input.
type Descriptor struct {
	// Name is the upstream's identifier, e.g. "filesystem", "tavily".
	Name string

	// LaunchCommand is the pre-split argv used to exec the child process.
	// LaunchCommand[0] is the executable; the rest are arguments. Pre-split
	// argv is required rather than a shell command string, so launching
	// never involves a shell and never needs shell-quoting rules.
	LaunchCommand []string

	// Env holds additional environment variables passed to the child on
	// top of the gateway's own environment.
	Env map[string]string

	// WarmupDelay, if set, is an extra pause after the initialized
	// notification before the client is considered Ready. Some upstreams
	// are not actually prepared to serve tools the instant they answer
	// initialize.
	WarmupDelay *time.Duration
}

// Validate checks that the descriptor is well-formed. It does not check
// that the command exists or is executable; that surfaces naturally on
// spawn.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("upstream: name is required")
	}
	if len(d.Name) > nameMaxLength {
		return fmt.Errorf("upstream %q: name exceeds %d characters", d.Name, nameMaxLength)
	}
	if !namePattern.MatchString(d.Name) {
		return fmt.Errorf("upstream %q: name must match %s", d.Name, namePattern.String())
	}
	if len(d.LaunchCommand) == 0 {
		return fmt.Errorf("upstream %q: launchCommand must have at least one element", d.Name)
	}
	if d.LaunchCommand[0] == "" {
		return fmt.Errorf("upstream %q: launchCommand[0] must not be empty", d.Name)
	}
	if d.WarmupDelay != nil && *d.WarmupDelay < 0 {
		return fmt.Errorf("upstream %q: warmupDelay must not be negative", d.Name)
	}
	return nil
}
