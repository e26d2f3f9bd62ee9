package scrape

import (
	"bytes"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"

	"github.com/irclight/unfurl/internal/preview"
)

// Field length clamps keep hostile or sloppy pages from inflating the
// preview payload.
const (
	maxTitleLen       = 256
	maxDescriptionLen = 500
)

// Extract pulls preview metadata out of a captured document prefix.
// OpenGraph properties win; missing fields fall back to the title tag,
// the first heading, the meta description, and the first paragraph.
// Relative image URLs are resolved against baseURL. Extraction never
// fails: unparsable input simply yields empty Metadata.
func Extract(baseURL string, doc []byte) preview.Metadata {
	var md preview.Metadata

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(bytes.NewReader(doc)); err == nil {
		md.Title = cleanText(og.Title, maxTitleLen)
		md.Description = cleanText(og.Description, maxDescriptionLen)
		md.ImageURL = firstImageURL(og)
	}

	if md.Title == "" || md.Description == "" {
		fillFromDocument(&md, doc)
	}

	md.ImageURL = resolveImageURL(baseURL, md.ImageURL)
	return md
}

func firstImageURL(og *opengraph.OpenGraph) string {
	for _, img := range og.Images {
		if img == nil {
			continue
		}
		if img.URL != "" {
			return img.URL
		}
		if img.SecureURL != "" {
			return img.SecureURL
		}
	}
	return ""
}

// fillFromDocument supplies title and description fallbacks from the
// document structure when OpenGraph tags are absent.
func fillFromDocument(md *preview.Metadata, doc []byte) {
	document, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return
	}

	if md.Title == "" {
		for _, selector := range []string{"title", "h1", "h2"} {
			if text := cleanText(document.Find(selector).First().Text(), maxTitleLen); text != "" {
				md.Title = text
				break
			}
		}
	}

	if md.Description == "" {
		if content, ok := document.Find(`meta[name="description"]`).First().Attr("content"); ok {
			md.Description = cleanText(content, maxDescriptionLen)
		}
	}
	if md.Description == "" {
		md.Description = cleanText(document.Find("p").First().Text(), maxDescriptionLen)
	}
}

// resolveImageURL absolutizes a scraped image reference against the
// final fetched URL; unresolvable references are dropped rather than
// handed to the renderer.
func resolveImageURL(baseURL, imageURL string) string {
	if imageURL == "" {
		return ""
	}
	img, err := url.Parse(imageURL)
	if err != nil {
		return ""
	}
	if img.IsAbs() {
		return imageURL
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return ""
	}
	return base.ResolveReference(img).String()
}

// cleanText collapses runs of whitespace and clamps the result on a
// rune boundary.
func cleanText(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = strings.TrimSpace(s[:cut])
	}
	return s
}
