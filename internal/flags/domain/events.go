package domain

import "time"

// RoutingKeyFlagInvalidated is published after every administrative write.
const RoutingKeyFlagInvalidated = "flag.invalidated"

// FlagAction names the administrative change behind an invalidation.
type FlagAction string

const (
	FlagActionUpserted FlagAction = "upserted"
	FlagActionDeleted  FlagAction = "deleted"
)

// FlagInvalidated tells peer instances to drop cached decisions for a flag.
type FlagInvalidated struct {
	Name       string     `json:"name"`
	Action     FlagAction `json:"action"`
	OccurredAt time.Time  `json:"occurred_at"`
	// Origin identifies the publishing instance so it can skip its own events.
	Origin string `json:"origin"`
}

// NewFlagInvalidated creates an invalidation event stamped with the current time.
func NewFlagInvalidated(name string, action FlagAction, origin string) FlagInvalidated {
	return FlagInvalidated{
		Name:       name,
		Action:     action,
		OccurredAt: time.Now().UTC(),
		Origin:     origin,
	}
}
