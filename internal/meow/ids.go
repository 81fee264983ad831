package meow

import (
	"strings"

	"github.com/google/uuid"
)

// NewJobID generates a namespaced job identifier, retrying against existing
// until it lands on one the caller hasn't already handed out.
func NewJobID(existing map[string]struct{}) string {
	for {
		id := "job_" + shortUUID()
		if _, taken := existing[id]; !taken {
			return id
		}
	}
}

// NewRuleID generates a namespaced rule identifier, retrying against
// existing the same way NewJobID does.
func NewRuleID(existing map[string]struct{}) string {
	for {
		id := "rule_" + shortUUID()
		if _, taken := existing[id]; !taken {
			return id
		}
	}
}

// shortUUID returns a 16-character alphanumeric suffix derived from a
// random UUID — collision-free for all practical purposes without carrying
// a bespoke CSPRNG/charset-sampling loop.
func shortUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
