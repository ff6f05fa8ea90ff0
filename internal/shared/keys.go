package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// PinAttemptKey builds the redis key tracking failed PIN attempts for one
// actor/action class within a tenant.
func PinAttemptKey(tenantID uuid.UUID, actorID int64, actionClass string) string {
	return fmt.Sprintf("security:%s:pin:%d:%s:fails", tenantID, actorID, actionClass)
}

// PinLockoutKey builds the redis key marking a throttled actor/action class.
func PinLockoutKey(tenantID uuid.UUID, actorID int64, actionClass string) string {
	return fmt.Sprintf("security:%s:pin:%d:%s:lock", tenantID, actorID, actionClass)
}
