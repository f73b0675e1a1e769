package preview

import (
	"bytes"
	"linkfolio/internal/domain"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// iconPattern matches image file names that are site icons rather than content.
var iconPattern = regexp.MustCompile(`(?i)favicon|icon`)

// metaSelector picks an attribute from every element matching a CSS selector.
type metaSelector struct {
	css  string
	attr string
}

var titleSelectors = []metaSelector{
	{`meta[property="og:title"]`, "content"},
	{`meta[name="twitter:title"]`, "content"},
}

var descriptionSelectors = []metaSelector{
	{`meta[property="og:description"]`, "content"},
	{`meta[name="twitter:description"]`, "content"},
	{`meta[name="description"]`, "content"},
}

var imageSelectors = []metaSelector{
	{`meta[property="og:image"]`, "content"},
	{`meta[property="og:image:url"]`, "content"},
	{`meta[property="og:image:secure_url"]`, "content"},
	{`meta[name="twitter:image"]`, "content"},
	{`meta[name="twitter:image:src"]`, "content"},
	{`meta[property="twitter:image"]`, "content"},
	{`meta[name="thumbnail"]`, "content"},
}

// linkRels are matched against the normalized rel attribute of <link> elements.
var (
	imageLinkRels = []string{"image_src", "apple-touch-icon", "icon"}
	iconLinkRels  = []string{"apple-touch-icon", "icon", "shortcut icon"}
)

// Extract parses html and collects title, description and image candidates.
// It never fails: anything missing gets the documented default.
func Extract(body []byte) domain.ExtractedMetadata {
	meta := domain.ExtractedMetadata{
		Title:       domain.DefaultTitle,
		Description: domain.DefaultDescription,
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return meta
	}
	doc := goquery.NewDocumentFromNode(root)

	if title := firstValue(doc, titleSelectors); title != "" {
		meta.Title = title
	} else if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta.Title = title
	}

	if desc := firstValue(doc, descriptionSelectors); desc != "" {
		meta.Description = desc
	}

	links := linksByRel(doc)

	var images []string
	for _, sel := range imageSelectors {
		images = append(images, allValues(doc, sel)...)
	}
	for _, rel := range imageLinkRels {
		images = append(images, links[rel]...)
	}
	if src := firstContentImage(doc); src != "" {
		images = append(images, src)
	}
	meta.RawImageCandidates = dedupe(images)

	var icons []string
	for _, rel := range iconLinkRels {
		icons = append(icons, links[rel]...)
	}
	meta.IconCandidates = dedupe(icons)

	return meta
}

// IsIconURL reports whether a candidate looks like a favicon or icon by file name.
// This is a heuristic; a content image named "icons-hero.png" is also excluded.
func IsIconURL(candidate string) bool {
	p := candidate
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return iconPattern.MatchString(path.Base(p))
}

func firstValue(doc *goquery.Document, selectors []metaSelector) string {
	for _, sel := range selectors {
		if values := allValues(doc, sel); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func allValues(doc *goquery.Document, sel metaSelector) []string {
	var values []string
	doc.Find(sel.css).Each(func(_ int, s *goquery.Selection) {
		if v := strings.TrimSpace(s.AttrOr(sel.attr, "")); v != "" {
			values = append(values, v)
		}
	})
	return values
}

// linksByRel groups <link href> values by their lowercased, space-normalized rel.
func linksByRel(doc *goquery.Document) map[string][]string {
	links := make(map[string][]string)
	doc.Find("link[rel][href]").Each(func(_ int, s *goquery.Selection) {
		rel := strings.ToLower(strings.Join(strings.Fields(s.AttrOr("rel", "")), " "))
		if href := strings.TrimSpace(s.AttrOr("href", "")); href != "" {
			links[rel] = append(links[rel], href)
		}
	})
	return links
}

func firstContentImage(doc *goquery.Document) string {
	var src string
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v := strings.TrimSpace(s.AttrOr("src", ""))
		if v == "" || IsIconURL(v) {
			return true
		}
		src = v
		return false
	})
	return src
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
