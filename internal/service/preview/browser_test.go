package preview

import (
	"context"
	"errors"
	"linkfolio/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBrowserScreenshotter_Try(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BrowserTimeout = time.Second

	var gotURL string
	var hadDeadline bool
	b := NewBrowserScreenshotterWithCapture(cfg, createTestLogger(), func(ctx context.Context, pageURL string) ([]byte, error) {
		gotURL = pageURL
		_, hadDeadline = ctx.Deadline()
		return []byte("jpeg"), nil
	})

	got, ok := b.Try(context.Background(), cascadeInput(t))

	assert.True(t, ok)
	assert.True(t, hadDeadline)
	assert.Equal(t, "https://example.com/work", gotURL)
	assert.Equal(t, domain.StrategyScreenshot, got.StrategyKind)
	assert.Equal(t, "data:image/jpeg;base64,anBlZw==", got.SourceURL)
}

func TestBrowserScreenshotter_Failure(t *testing.T) {
	tests := []struct {
		name    string
		capture CaptureFunc
	}{
		{"error", func(context.Context, string) ([]byte, error) { return nil, errors.New("no chrome") }},
		{"empty", func(context.Context, string) ([]byte, error) { return nil, nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBrowserScreenshotterWithCapture(DefaultConfig(), createTestLogger(), tt.capture)
			_, ok := b.Try(context.Background(), cascadeInput(t))
			assert.False(t, ok)
		})
	}
}
