// Package session holds the ephemeral per-campaign combat state behind a
// store interface, so the in-process map can be swapped for redis.
package session

import (
	"context"
	"errors"

	"github.com/DoyleJ11/warband-backend/internal/engine"
)

var ErrContention = errors.New("session changed concurrently")

// MutateFunc receives the current state (zero value when absent) and returns
// the state to keep. Returning an empty state removes the entry.
type MutateFunc func(engine.State) (engine.State, error)

type Store interface {
	// Get returns the state and whether the campaign has one.
	Get(ctx context.Context, campaignID int64) (engine.State, bool, error)
	// Mutate applies fn atomically with respect to other Mutate calls for the
	// same campaign. When fn fails nothing is written.
	Mutate(ctx context.Context, campaignID int64, fn MutateFunc) (engine.State, error)
	// Snapshot returns a copy safe to hand to a joining client.
	Snapshot(ctx context.Context, campaignID int64) (engine.State, error)
	Delete(ctx context.Context, campaignID int64) error
}
