package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// compactUUID returns a new UUID without dashes.
func compactUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// OrderNo builds a recharge order number, prefixed "R" with a
// millisecond timestamp so numbers sort roughly by creation time.
func OrderNo() string {
	return fmt.Sprintf("R%d%s", time.Now().UnixMilli(), strings.ToUpper(compactUUID()[:9]))
}

// CardNo builds a recharge card number, prefixed "C".
func CardNo() string {
	return fmt.Sprintf("C%d%s", time.Now().UnixMilli(), strings.ToUpper(compactUUID()[:9]))
}

// CardPassword returns a random 12-character card secret. Callers hash
// it before storage; the plaintext is only shown once at creation.
func CardPassword() string {
	return strings.ToUpper(compactUUID()[:12])
}

// AppID returns a random application identifier.
func AppID() string {
	return "app_" + compactUUID()[:16]
}

// AppSecret returns a random application secret.
func AppSecret() string {
	return compactUUID()
}
