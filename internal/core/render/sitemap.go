package render

import (
	"encoding/xml"
	"time"

	"github.com/buildcart/buildcart/internal/core/domain"
)

// =============================================================================
// Sitemap
// =============================================================================

const sitemapXMLNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// renderSitemap enumerates the store's indexable pages: home, listing,
// about, contact, plus one entry per active product. Cart and checkout are
// deliberately excluded from search indexing.
func renderSitemap(snap domain.StoreSnapshot, baseURL string, now time.Time) []byte {
	lastmod := now.UTC().Format("2006-01-02")

	set := urlset{
		XMLNS: sitemapXMLNS,
		URLs: []sitemapURL{
			{Loc: baseURL + "/", LastMod: lastmod, ChangeFreq: "daily", Priority: "1.0"},
			{Loc: baseURL + "/" + FileProducts, LastMod: lastmod, ChangeFreq: "daily", Priority: "0.9"},
			{Loc: baseURL + "/" + FileAbout, LastMod: lastmod, ChangeFreq: "monthly", Priority: "0.5"},
			{Loc: baseURL + "/" + FileContact, LastMod: lastmod, ChangeFreq: "monthly", Priority: "0.5"},
		},
	}

	for _, p := range snap.Products {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        baseURL + "/product/" + p.PageName() + ".html",
			LastMod:    lastmod,
			ChangeFreq: "weekly",
			Priority:   "0.8",
		})
	}

	// Marshalling a static struct cannot fail.
	body, _ := xml.MarshalIndent(set, "", "  ")
	return append([]byte(xml.Header), append(body, '\n')...)
}

// =============================================================================
// Robots Policy
// =============================================================================

func renderRobots(baseURL string) []byte {
	return []byte("User-agent: *\nAllow: /\nDisallow: /cart.html\nDisallow: /checkout.html\n\nSitemap: " + baseURL + "/" + FileSitemap + "\n")
}
