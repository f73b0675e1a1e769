package preview

import (
	"net/url"
	"strings"
)

// Normalize turns an image or icon reference into an absolute URL.
// References that already carry a scheme are returned unchanged; anything
// else is resolved against the page origin. ok is false when the reference
// cannot be resolved and should be dropped.
func Normalize(candidate string, page *url.URL) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || page == nil {
		return "", false
	}

	ref, err := url.Parse(candidate)
	if err != nil {
		return "", false
	}
	if ref.Scheme != "" {
		return candidate, true
	}

	if page.Scheme == "" || page.Host == "" {
		return "", false
	}
	origin := &url.URL{Scheme: page.Scheme, Host: page.Host, Path: "/"}
	resolved := origin.ResolveReference(ref)
	if resolved.Host == "" {
		return "", false
	}
	return resolved.String(), true
}

// normalizeAll normalizes candidates in order, dropping unresolvable ones and
// duplicates.
func normalizeAll(candidates []string, page *url.URL) []string {
	out := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		abs, ok := Normalize(c, page)
		if !ok || seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}
