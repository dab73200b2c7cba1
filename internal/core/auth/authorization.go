package auth

import (
	"github.com/buildcart/buildcart/internal/core/domain"
)

// =============================================================================
// Store Authorization
// =============================================================================

// CanManageStore checks if the caller may deploy, roll back, or bind
// domains for a store. The owning user and administrators are allowed.
func CanManageStore(ctx Context, snap domain.StoreSnapshot) bool {
	if !ctx.Authenticated {
		return false
	}
	return ctx.IsAdmin() || ctx.UserID == snap.OwnerID
}

// =============================================================================
// Deployment Authorization
// =============================================================================

// CanViewDeployment checks if the caller may read a deployment's status or
// logs. ownerID is the owning store's user.
func CanViewDeployment(ctx Context, ownerID string) bool {
	if !ctx.Authenticated {
		return false
	}
	return ctx.IsAdmin() || ctx.UserID == ownerID
}

// CanDeleteDeployment checks if the caller may permanently remove a
// deployment record.
func CanDeleteDeployment(ctx Context, ownerID string) bool {
	return CanViewDeployment(ctx, ownerID)
}
