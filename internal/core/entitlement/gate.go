// Package entitlement decides whether a user may reach member-gated
// functionality of an app.
package entitlement

import (
	"time"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/common/errorx"
)

// Check enforces membership for paid apps. Free apps always pass.
// For paid apps a user with no expiry on record has never been a
// member; an expiry at or before now means the membership lapsed,
// and the error carries the lapse instant so clients can prompt a
// renewal. The boundary is exclusive: an expiry equal to now denies.
func Check(app *database.App, user *database.User, now time.Time) error {
	if app.ChargeMode == database.ChargeModeFree {
		return nil
	}
	if user.MemberExpiresAt == nil {
		return errorx.ErrNotAMember
	}
	if !user.MemberExpiresAt.After(now) {
		return errorx.MembershipExpired(*user.MemberExpiresAt)
	}
	return nil
}
