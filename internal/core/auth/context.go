// Package auth provides the authentication context and ownership checks
// consumed by the deployment pipeline. Identity is issued upstream by the
// platform's auth service; this package only carries and evaluates it.
package auth

import (
	"context"
	"net/http"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const authContextKey contextKey = "auth"

// =============================================================================
// Types
// =============================================================================

// Role is the caller's platform role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Context represents the already-authorized identity for a request. It is
// extracted from gateway-injected headers and stored in the request context.
type Context struct {
	// UserID is the platform user ID of the caller.
	UserID string

	// Email is the caller's email, used for deployment notifications.
	Email string

	// Role is the caller's platform role.
	Role Role

	// Authenticated indicates whether the request carried an identity.
	Authenticated bool
}

// IsAdmin reports whether the caller holds the administrator role.
func (c Context) IsAdmin() bool {
	return c.Authenticated && c.Role == RoleAdmin
}

// =============================================================================
// Header Constants
// =============================================================================

const (
	// HeaderUserID is the header containing the authenticated user's ID.
	HeaderUserID = "X-User-ID"

	// HeaderUserEmail is the header containing the user's email.
	HeaderUserEmail = "X-User-Email"

	// HeaderUserRole is the header containing the user's role.
	HeaderUserRole = "X-User-Role"
)

// =============================================================================
// Context Extraction
// =============================================================================

// HeaderGetter is an interface for getting header values.
// This allows testing without requiring an http.Request.
type HeaderGetter interface {
	Get(key string) string
}

// ExtractFromRequest extracts auth context from HTTP request headers.
// If X-User-ID is not present, returns an unauthenticated context.
func ExtractFromRequest(r *http.Request) Context {
	return ExtractFromHeaders(r.Header)
}

// ExtractFromHeaders extracts auth context from headers using the
// HeaderGetter interface. The gateway has already authenticated the caller;
// no credential verification happens here.
func ExtractFromHeaders(headers HeaderGetter) Context {
	userID := headers.Get(HeaderUserID)
	if userID == "" {
		return Context{Authenticated: false}
	}

	role := RoleUser
	if Role(headers.Get(HeaderUserRole)) == RoleAdmin {
		role = RoleAdmin
	}

	return Context{
		UserID:        userID,
		Email:         headers.Get(HeaderUserEmail),
		Role:          role,
		Authenticated: true,
	}
}

// =============================================================================
// Context Storage
// =============================================================================

// WithContext stores the auth context in the request context.
func WithContext(ctx context.Context, authCtx Context) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// FromContext retrieves the auth context from the request context.
// If no auth context is found, returns an unauthenticated context.
func FromContext(ctx context.Context) Context {
	if authCtx, ok := ctx.Value(authContextKey).(Context); ok {
		return authCtx
	}
	return Context{Authenticated: false}
}

// =============================================================================
// Helper Types for Testing
// =============================================================================

// MapHeaderGetter wraps a map to implement HeaderGetter interface.
type MapHeaderGetter map[string]string

func (m MapHeaderGetter) Get(key string) string {
	return m[key]
}
