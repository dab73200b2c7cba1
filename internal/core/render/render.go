// Package render turns a store snapshot into a complete set of static site
// documents. This is part of the Functional Core - rendering is
// deterministic for a given snapshot and deploy time, consults no external
// services, and is safe to call concurrently for different stores.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	texttemplate "text/template"

	"github.com/buildcart/buildcart/internal/core/domain"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// PlaceholderAsset is the image reference used for products without images.
// The build writer copies the actual asset into every build tree.
const PlaceholderAsset = "/assets/placeholder.svg"

// Generated document names. The HTTP layer and tests rely on this exact set.
const (
	FileHome     = "index.html"
	FileProducts = "products.html"
	FileCart     = "cart.html"
	FileCheckout = "checkout.html"
	FileContact  = "contact.html"
	FileAbout    = "about.html"
	FileStyles   = "styles.css"
	FileScripts  = "scripts.js"
	FileSitemap  = "sitemap.xml"
	FileRobots   = "robots.txt"
)

var (
	pageTmpl = template.Must(template.ParseFS(templatesFS,
		"templates/base.tmpl",
		"templates/index.tmpl",
		"templates/products.tmpl",
		"templates/product.tmpl",
		"templates/cart.tmpl",
		"templates/checkout.tmpl",
		"templates/contact.tmpl",
		"templates/about.tmpl",
	))
	assetTmpl = texttemplate.Must(texttemplate.ParseFS(templatesFS,
		"templates/styles.css.tmpl",
		"templates/scripts.js.tmpl",
	))
)

// =============================================================================
// Template Context
// =============================================================================

// productView is a product prepared for template rendering.
type productView struct {
	domain.Product
	Page  string
	Image string
	Price string
}

// pageData is the typed context passed to every page template.
type pageData struct {
	Title    string
	Store    domain.StoreSnapshot
	Theme    domain.Theme
	Products []productView
	Product  *productView
	BaseURL  string
	Year     int
}

func viewOf(p domain.Product) productView {
	image := PlaceholderAsset
	if len(p.Images) > 0 {
		image = p.Images[0]
	}
	return productView{
		Product: p,
		Page:    p.PageName(),
		Image:   image,
		Price:   p.DisplayPrice(),
	}
}

// =============================================================================
// Render
// =============================================================================

// Render produces the full document set for a snapshot: one file per page,
// the theme stylesheet, the storefront script, the sitemap, and the robots
// policy. baseURL is the resolved public URL of the store (no trailing
// slash); now supplies the sitemap lastmod timestamps.
//
// A snapshot with zero active products still renders a valid (empty)
// listing. Only a structurally invalid snapshot fails.
func Render(snap domain.StoreSnapshot, baseURL string, now time.Time) (map[string][]byte, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	theme := snap.Theme.WithDefaults()
	products := make([]productView, 0, len(snap.Products))
	for _, p := range snap.Products {
		products = append(products, viewOf(p))
	}

	data := pageData{
		Store:    snap,
		Theme:    theme,
		Products: products,
		BaseURL:  baseURL,
		Year:     now.UTC().Year(),
	}

	out := make(map[string][]byte, len(products)+11)

	pages := []struct {
		file  string
		tmpl  string
		title string
	}{
		{FileHome, "index.tmpl", snap.Name},
		{FileProducts, "products.tmpl", "Products — " + snap.Name},
		{FileCart, "cart.tmpl", "Cart — " + snap.Name},
		{FileCheckout, "checkout.tmpl", "Checkout — " + snap.Name},
		{FileContact, "contact.tmpl", "Contact — " + snap.Name},
		{FileAbout, "about.tmpl", "About — " + snap.Name},
	}

	for _, page := range pages {
		d := data
		d.Title = page.title
		body, err := executePage(page.tmpl, d)
		if err != nil {
			return nil, err
		}
		out[page.file] = body
	}

	for i := range products {
		d := data
		d.Product = &products[i]
		d.Title = products[i].Name + " — " + snap.Name
		body, err := executePage("product.tmpl", d)
		if err != nil {
			return nil, err
		}
		out["product/"+products[i].Page+".html"] = body
	}

	styles, err := executeAsset("styles.css.tmpl", data)
	if err != nil {
		return nil, err
	}
	out[FileStyles] = styles

	scripts, err := executeAsset("scripts.js.tmpl", data)
	if err != nil {
		return nil, err
	}
	out[FileScripts] = scripts

	out[FileSitemap] = renderSitemap(snap, baseURL, now)
	out[FileRobots] = renderRobots(baseURL)

	return out, nil
}

func executePage(name string, data pageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("%w: template %s: %v", domain.ErrRender, name, err)
	}
	return buf.Bytes(), nil
}

func executeAsset(name string, data pageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := assetTmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("%w: template %s: %v", domain.ErrRender, name, err)
	}
	return buf.Bytes(), nil
}
