package feedsync

import (
	"fmt"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
)

// Phase is the position of a Client within a synchronization cycle.
type Phase int

// Cycle phases, in order.
const (
	PhaseIdle Phase = iota
	PhaseFeedDiscovered
	PhaseSchemaReconciled
	PhaseManifestIndexed
	PhaseManifestLoaded
	PhaseEntityDataDownloaded
)

var phaseNames = map[Phase]string{
	PhaseIdle:                 "idle",
	PhaseFeedDiscovered:       "feed_discovered",
	PhaseSchemaReconciled:     "schema_reconciled",
	PhaseManifestIndexed:      "manifest_indexed",
	PhaseManifestLoaded:       "manifest_loaded",
	PhaseEntityDataDownloaded: "entity_data_downloaded",
}

// String returns the phase name.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Phase returns the current phase.
func (c *Client) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Reset discards the cycle state and returns the client to PhaseIdle.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Client) resetLocked() {
	c.phase = PhaseIdle
	c.manifests = nil
	c.current = nil
	c.tracked = nil
	c.states = nil
}

// requireLocked fails unless the client reached at least want.
func (c *Client) requireLocked(op string, want Phase) error {
	if c.phase < want {
		return ferrors.NewError(op, ferrors.ErrInvalidState).
			WithMessage(fmt.Sprintf("requires %s, client is %s", want, c.phase))
	}
	return nil
}
