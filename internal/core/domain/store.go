// Package domain contains the core entities of the store deployment
// pipeline. All types and functions here are pure — no I/O.
package domain

import (
	"fmt"
	"time"
)

// =============================================================================
// Theme
// =============================================================================

// Default theme values applied by the renderer when a snapshot omits them.
const (
	DefaultPrimaryColor   = "#1a1a2e"
	DefaultSecondaryColor = "#e94560"
	DefaultLayout         = "grid"
	DefaultFont           = "-apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif"
)

// Theme holds the visual configuration of a store.
type Theme struct {
	PrimaryColor   string `json:"primary_color" yaml:"primary_color"`
	SecondaryColor string `json:"secondary_color" yaml:"secondary_color"`
	Layout         string `json:"layout" yaml:"layout"`
	HeadingFont    string `json:"heading_font" yaml:"heading_font"`
	BodyFont       string `json:"body_font" yaml:"body_font"`
}

// WithDefaults returns a copy of the theme with missing fields filled in.
func (t Theme) WithDefaults() Theme {
	if t.PrimaryColor == "" {
		t.PrimaryColor = DefaultPrimaryColor
	}
	if t.SecondaryColor == "" {
		t.SecondaryColor = DefaultSecondaryColor
	}
	if t.Layout == "" {
		t.Layout = DefaultLayout
	}
	if t.HeadingFont == "" {
		t.HeadingFont = DefaultFont
	}
	if t.BodyFont == "" {
		t.BodyFont = DefaultFont
	}
	return t
}

// =============================================================================
// Product
// =============================================================================

// Product is one active product in a store snapshot.
type Product struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	PriceCents  int64    `json:"price_cents" yaml:"price_cents"`
	Currency    string   `json:"currency" yaml:"currency"`
	Images      []string `json:"images,omitempty" yaml:"images,omitempty"`
	Handle      string   `json:"handle,omitempty" yaml:"handle,omitempty"`
}

// PageName returns the output document name for the product page:
// the URL handle if present, else the product ID.
func (p Product) PageName() string {
	if p.Handle != "" {
		return p.Handle
	}
	return p.ID
}

// DisplayPrice formats the price for rendering, e.g. "$19.99".
func (p Product) DisplayPrice() string {
	symbol := "$"
	switch p.Currency {
	case "EUR":
		symbol = "€"
	case "GBP":
		symbol = "£"
	}
	return fmt.Sprintf("%s%d.%02d", symbol, p.PriceCents/100, p.PriceCents%100)
}

// =============================================================================
// Store Snapshot
// =============================================================================

// StoreSnapshot is the read-only view of a store's configuration and active
// products at deploy time. It is owned by the store-management subsystem;
// the pipeline never mutates it.
type StoreSnapshot struct {
	ID           string    `json:"id" yaml:"id"`
	OwnerID      string    `json:"owner_id" yaml:"owner_id"`
	OwnerEmail   string    `json:"owner_email" yaml:"owner_email"`
	Name         string    `json:"name" yaml:"name"`
	Slug         string    `json:"slug" yaml:"slug"`
	Description  string    `json:"description" yaml:"description"`
	Theme        Theme     `json:"theme" yaml:"theme"`
	Products     []Product `json:"products,omitempty" yaml:"products,omitempty"`
	CustomDomain string    `json:"custom_domain,omitempty" yaml:"custom_domain,omitempty"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// Validate checks the snapshot is structurally sound for rendering.
func (s StoreSnapshot) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: snapshot has no store ID", ErrRender)
	}
	if s.Slug == "" {
		return fmt.Errorf("%w: store %s has no slug", ErrRender, s.ID)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: store %s has no display name", ErrRender, s.ID)
	}
	return nil
}

// =============================================================================
// Domain Binding
// =============================================================================

// DomainBinding maps a custom domain name to the single store it serves.
// Hostname uniqueness across all stores is enforced by the storage layer.
type DomainBinding struct {
	Hostname       string     `json:"hostname"`
	StoreID        string     `json:"store_id"`
	SSLEnabled     bool       `json:"ssl_enabled"`
	SSLRequestedAt *time.Time `json:"ssl_requested_at,omitempty"`
	SSLIssuedAt    *time.Time `json:"ssl_issued_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// =============================================================================
// Public URL Resolution
// =============================================================================

// ResolvePublicURL returns the public URL a store serves from: the custom
// domain when bound, else the slug subdomain under the platform suffix.
// baseSuffix includes the leading dot, e.g. ".stores.buildcart.ai".
func ResolvePublicURL(snap StoreSnapshot, baseSuffix string) string {
	if snap.CustomDomain != "" {
		return "https://" + snap.CustomDomain
	}
	return "https://" + snap.Slug + baseSuffix
}
