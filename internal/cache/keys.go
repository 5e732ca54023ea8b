package cache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

func JobStatusKey(jobUID uuid.UUID) string {
	return fmt.Sprintf("job:status:%s", jobUID)
}

// JobHashKey maps a public job hash to its UID so status polls can skip the
// database.
func JobHashKey(hashedUID string) string {
	return "job:uidh:" + hashedUID
}

// RateLimitKey scopes a counter to one endpoint group and client address.
func RateLimitKey(scope, clientIP string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, clientIP)
}

// ValidationKey addresses the memoized validation outcome of raw input text.
func ValidationKey(raw string) string {
	return fmt.Sprintf("validate:%016x", xxhash.Sum64String(raw))
}
