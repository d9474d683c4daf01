// Package level derives a user's membership tier from a point total.
package level

import (
	"context"
	"errors"
	"fmt"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/common/errorx"
)

// Resolver selects the highest qualifying member level for a point
// total. It never writes; callers persist a level change themselves.
type Resolver struct {
	db database.Database
}

// NewResolver creates a new level resolver
func NewResolver(db database.Database) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns the active level with the highest rank among those
// whose threshold does not exceed pointTotal. It returns nil when no
// level qualifies; the caller then keeps the user's current level.
// Ranks are expected unique; duplicates tie-break on the newest row.
func (r *Resolver) Resolve(ctx context.Context, pointTotal int64) (*database.MemberLevel, error) {
	lvl, err := r.db.HighestLevelForPoints(ctx, pointTotal)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: resolve level: %v", errorx.ErrStoreUnavailable, err)
	}
	return lvl, nil
}
