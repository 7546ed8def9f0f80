package providers

import (
	"context"
	"strings"

	"VideoPipeline-server/apperr"
	"VideoPipeline-server/models"
)

// DefaultMood is used when a music request names no mood.
const DefaultMood = "energetic"

type MusicRequest struct {
	Mood       string
	DurationMs int
	Genre      string
}

type MusicResult struct {
	AudioURL   string
	DurationMs int
	Title      string
	Artist     string
	Mood       string
}

type MusicProvider interface {
	Name() string
	Select(ctx context.Context, req MusicRequest) (MusicResult, error)
}

// mockCatalog's first entry is the fallback for unknown moods.
var mockCatalog = []MusicResult{
	{AudioURL: models.MockURLPrefix + "audio/music/drive-forward", DurationMs: 120000, Title: "Drive Forward", Artist: "Mock Audio Library", Mood: "energetic"},
	{AudioURL: models.MockURLPrefix + "audio/music/still-water", DurationMs: 150000, Title: "Still Water", Artist: "Mock Audio Library", Mood: "calm"},
	{AudioURL: models.MockURLPrefix + "audio/music/rising-stakes", DurationMs: 90000, Title: "Rising Stakes", Artist: "Mock Audio Library", Mood: "dramatic"},
	{AudioURL: models.MockURLPrefix + "audio/music/sunny-side", DurationMs: 105000, Title: "Sunny Side", Artist: "Mock Audio Library", Mood: "upbeat"},
	{AudioURL: models.MockURLPrefix + "audio/music/new-horizons", DurationMs: 135000, Title: "New Horizons", Artist: "Mock Audio Library", Mood: "inspirational"},
}

type MockMusicProvider struct{}

func (MockMusicProvider) Name() string { return "mock-music" }

func (MockMusicProvider) Select(ctx context.Context, req MusicRequest) (MusicResult, error) {
	if err := ctx.Err(); err != nil {
		return MusicResult{}, err
	}
	mood := strings.ToLower(strings.TrimSpace(req.Mood))
	for _, track := range mockCatalog {
		if track.Mood == mood {
			return track, nil
		}
	}
	return mockCatalog[0], nil
}

// HTTPMusicProvider is the slot for a licensed music library backend.
type HTTPMusicProvider struct {
	Endpoint string
	APIKey   string
}

func (p *HTTPMusicProvider) Name() string { return "http-music" }

func (p *HTTPMusicProvider) Select(ctx context.Context, req MusicRequest) (MusicResult, error) {
	return MusicResult{}, apperr.Wrap(apperr.ErrProviderUnavailable, "music", p.Name(), "backend not implemented", nil)
}
