package notifications

import (
	"context"
	"fmt"
	"strings"
)

// Provider is one delivery channel for rotation events.
type Provider interface {
	// Name returns the provider name (e.g. "slack", "email", "webhook").
	Name() string

	// Send delivers a notification for the given event.
	Send(ctx context.Context, event Event) error

	// SupportsLevel returns true if this provider handles the given level.
	SupportsLevel(level Level) bool

	// Validate checks if the provider configuration is valid.
	Validate(ctx context.Context) error
}

// supportsLevel implements the shared event filter: an empty configured
// list means all levels.
func supportsLevel(configured []string, level Level) bool {
	if len(configured) == 0 {
		return true
	}
	for _, want := range configured {
		if strings.EqualFold(want, string(level)) {
			return true
		}
	}
	return false
}

// validateEvents rejects configured event levels that no event will ever
// carry, so a typo does not silently filter everything out.
func validateEvents(configured []string) error {
	for _, want := range configured {
		known := false
		for _, level := range AllLevels() {
			if strings.EqualFold(want, string(level)) {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown event level %q (valid: %v)", want, AllLevels())
		}
	}
	return nil
}
