package domain

// Default strings used when a page carries no usable metadata
const (
	DefaultTitle       = "No title available"
	DefaultDescription = "No description available"

	// Used by the degraded record when the target could not be fetched
	UnavailableDescription = "Preview not available"

	// Used by the generic error body when not even a domain is available
	FailedTitle       = "Failed to load preview"
	FailedDescription = "Could not fetch preview data for this URL"
)

// StrategyKind identifies which fallback mechanism produced the selected image
type StrategyKind int

const (
	StrategyNone StrategyKind = iota
	StrategyMetaImageProxied
	StrategyMetaImageDirect
	StrategyScreenshot
	StrategyFavicon
	StrategyPlaceholder
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyMetaImageProxied:
		return "meta_image_proxied"
	case StrategyMetaImageDirect:
		return "meta_image_direct"
	case StrategyScreenshot:
		return "screenshot"
	case StrategyFavicon:
		return "favicon"
	case StrategyPlaceholder:
		return "placeholder"
	default:
		return "none"
	}
}

// ImageCandidate is a not-yet-validated thumbnail URL and the strategy that proposed it.
// Template is the configured URL template the candidate was built from, empty for
// direct and generated candidates.
type ImageCandidate struct {
	SourceURL    string
	StrategyKind StrategyKind
	Template     string
}

// ValidationResult is the outcome of probing one candidate
type ValidationResult struct {
	Accepted            bool
	StatusCode          int
	ContentTypeObserved *string
}

// ExtractedMetadata is the social metadata found in a fetched page.
// Missing fields hold the documented defaults, never empty strings.
type ExtractedMetadata struct {
	Title              string
	Description        string
	RawImageCandidates []string

	// apple-touch-icon, icon, shortcut icon hrefs in that order
	IconCandidates []string
}

// PreviewRecord is the normalized preview returned for a link.
// Image is nil only in the generic failure body.
type PreviewRecord struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       *string `json:"image"`
	URL         string  `json:"url"`

	// Selected image, kept out of the wire format
	Selected ImageCandidate `json:"-"`

	// Degraded is set when the page itself could not be fetched
	Degraded bool `json:"-"`
}

// FailedPreview builds the generic failure body for a URL that could not
// even yield a domain.
func FailedPreview(rawURL string) PreviewRecord {
	return PreviewRecord{
		Title:       FailedTitle,
		Description: FailedDescription,
		Image:       nil,
		URL:         rawURL,
	}
}
