package preview

import (
	"encoding/base64"
	"fmt"
	"html"
)

const (
	placeholderWidth  = 400
	placeholderHeight = 200
)

// Placeholder returns a self-contained SVG data URI showing the domain on a
// solid background. It is pure and always succeeds.
func Placeholder(domain string) string {
	svg := fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">`+
		`<rect width="%d" height="%d" fill="#4F46E5"/>`+
		`<text x="200" y="100" font-family="Arial, sans-serif" font-size="14" fill="white" text-anchor="middle" dominant-baseline="middle">%s</text>`+
		`</svg>`,
		placeholderWidth, placeholderHeight, placeholderWidth, placeholderHeight, html.EscapeString(domain))
	return svgDataURI(svg)
}

// Unavailable returns the grey variant used when the page itself could not be fetched.
func Unavailable(domain string) string {
	svg := fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">`+
		`<rect width="%d" height="%d" fill="#6B7280"/>`+
		`<text x="200" y="90" font-family="Arial, sans-serif" font-size="14" fill="white" text-anchor="middle" dominant-baseline="middle">%s</text>`+
		`<text x="200" y="120" font-family="Arial, sans-serif" font-size="12" fill="#D1D5DB" text-anchor="middle" dominant-baseline="middle">Preview not available</text>`+
		`</svg>`,
		placeholderWidth, placeholderHeight, placeholderWidth, placeholderHeight, html.EscapeString(domain))
	return svgDataURI(svg)
}

func svgDataURI(svg string) string {
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}
