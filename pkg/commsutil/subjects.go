package commsutil

import "strings"

// Default COMMS subjects.
const (
	SubjectRPC         = "mp.rpc.v1"
	DefaultEventPrefix = "mp.game.events"
)

// BuildEventSubject joins prefix and eventType into a publish subject.
// Dots inside eventType are replaced so it stays a single token.
func BuildEventSubject(prefix, eventType string) string {
	if prefix == "" {
		prefix = DefaultEventPrefix
	}
	return strings.TrimSuffix(prefix, ".") + "." + strings.ReplaceAll(eventType, ".", "_")
}

// EventWildcard returns the subject matching every event under prefix.
func EventWildcard(prefix string) string {
	if prefix == "" {
		prefix = DefaultEventPrefix
	}
	return strings.TrimSuffix(prefix, ".") + ".>"
}
