package urldetector

import (
	"fmt"
	"net/url"
	"strings"
)

// trackingParams are stripped from stored URLs
var trackingParams = []string{
	// Google Analytics
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_content",
	"utm_term",
	// Platform-specific tracking
	"si",     // Spotify/YouTube share ID
	"fbclid", // Facebook click ID
	"gclid",  // Google click ID
	"ref",    // Generic referrer
	"source", // Generic source
	"msclkid",
	"igshid",
}

// NormalizeURL creates a canonical form of a URL for storage and deduplication.
// It handles:
// - Adding https:// protocol if missing
// - Lowercasing the scheme and host
// - Repairing a second '?' inside the query string
// - Removing tracking parameters (utm_*, si, fbclid, ref, source)
// - Validating the URL structure
//
// The www. prefix is kept: many portfolio hosts serve different content on
// the bare domain.
func NormalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("empty URL")
	}

	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.Contains(lower, "://") {
			return "", fmt.Errorf("invalid URL: unsupported scheme")
		}
		// Check if it looks like a domain (has at least one dot)
		if !strings.Contains(rawURL, ".") {
			return "", fmt.Errorf("invalid URL: no domain found")
		}
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(fixMalformedQueryString(rawURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid URL: no host found")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.RawQuery != "" {
		q := u.Query()
		for _, param := range trackingParams {
			q.Del(param)
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// fixMalformedQueryString turns every '?' after the first into '&'.
// Chat clients sometimes paste share links as "?v=1?si=abc".
func fixMalformedQueryString(rawURL string) string {
	fragment := ""
	if i := strings.Index(rawURL, "#"); i >= 0 {
		rawURL, fragment = rawURL[:i], rawURL[i:]
	}

	first := strings.Index(rawURL, "?")
	if first < 0 {
		return rawURL + fragment
	}
	rest := strings.ReplaceAll(rawURL[first+1:], "?", "&")
	return rawURL[:first+1] + rest + fragment
}

// cleanTrailingPunctuation removes trailing punctuation from a URL intelligently.
// It preserves closing parentheses if they're balanced (for Wikipedia-style URLs).
func cleanTrailingPunctuation(urlStr string) string {
	urlStr = strings.TrimRight(urlStr, ".,!?;:\"'>")

	if strings.HasSuffix(urlStr, ")") {
		openCount := strings.Count(urlStr, "(")
		closeCount := strings.Count(urlStr, ")")
		if closeCount > openCount {
			return cleanTrailingPunctuation(strings.TrimSuffix(urlStr, ")"))
		}
	}

	return urlStr
}
