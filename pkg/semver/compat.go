// Package semver checks client protocol versions against the server's accepted range.
package semver

import (
	"fmt"
	"log/slog"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "semver:compat"

// Compatibility holds the server version and the range of client versions it accepts.
type Compatibility struct {
	server     *masterminds.Version
	constraint *masterminds.Constraints
	raw        string
}

// NewCompatibility parses serverVersion and constraint. A server version outside
// its own constraint is allowed but logged.
func NewCompatibility(serverVersion, constraint string) (*Compatibility, error) {
	sv, err := masterminds.NewVersion(strings.TrimSpace(serverVersion))
	if err != nil {
		return nil, fmt.Errorf("%s - invalid server version %q: %w", logPrefix, serverVersion, err)
	}
	raw := strings.TrimSpace(constraint)
	c, err := masterminds.NewConstraint(raw)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid constraint %q: %w", logPrefix, constraint, err)
	}
	if !c.Check(sv) {
		slog.Warn(fmt.Sprintf("%s - server version %s does not satisfy %q", logPrefix, sv, raw))
	}
	return &Compatibility{server: sv, constraint: c, raw: raw}, nil
}

// Check reports whether clientVersion falls inside the accepted range.
// An unparseable version is an error, not an incompatibility.
func (c *Compatibility) Check(clientVersion string) (bool, error) {
	v, err := masterminds.NewVersion(strings.TrimSpace(clientVersion))
	if err != nil {
		return false, fmt.Errorf("invalid client version %q: %w", clientVersion, err)
	}
	return c.constraint.Check(v), nil
}

// ServerVersion returns the normalized server version, e.g. "0.1.0".
func (c *Compatibility) ServerVersion() string {
	return c.server.String()
}

// Constraint returns the accepted range as configured.
func (c *Compatibility) Constraint() string {
	return c.raw
}

// SatisfiesRange checks if a version string satisfies a range. Invalid input
// of either kind yields false.
func SatisfiesRange(version, rangeStr string) bool {
	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		return false
	}
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return false
	}
	return constraint.Check(sv)
}
