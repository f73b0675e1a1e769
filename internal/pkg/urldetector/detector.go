package urldetector

import (
	"net/url"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`(?i)https?://[^\s<>"]+`)

// Detector finds http(s) links in free text such as chat messages
type Detector struct {
	ignoredHosts map[string]bool
}

// New creates a detector. Links whose host is in ignoredHosts, or a
// subdomain of one, are skipped.
func New(ignoredHosts ...string) *Detector {
	d := &Detector{ignoredHosts: make(map[string]bool, len(ignoredHosts))}
	for _, host := range ignoredHosts {
		d.ignoredHosts[strings.ToLower(host)] = true
	}
	return d
}

// DetectURLs returns the normalized links in content, deduplicated, in the
// order they first appear.
func (d *Detector) DetectURLs(content string) []string {
	var urls []string
	seen := make(map[string]bool)

	for _, match := range urlPattern.FindAllString(content, -1) {
		normalized, err := NormalizeURL(cleanTrailingPunctuation(match))
		if err != nil {
			continue
		}
		if d.isIgnored(normalized) || seen[normalized] {
			continue
		}
		seen[normalized] = true
		urls = append(urls, normalized)
	}

	return urls
}

func (d *Detector) isIgnored(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := u.Hostname()
	for ignored := range d.ignoredHosts {
		if host == ignored || strings.HasSuffix(host, "."+ignored) {
			return true
		}
	}
	return false
}
