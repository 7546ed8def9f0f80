package providers

import (
	"context"
	"fmt"
	"strings"

	"VideoPipeline-server/apperr"
	"VideoPipeline-server/models"
)

// MockWordsPerMinute is the speaking rate the mock TTS assumes.
const MockWordsPerMinute = 150

type SpeechRequest struct {
	Text    string
	VoiceID string
	Model   string
}

type SpeechResult struct {
	AudioURL   string
	DurationMs int
	Format     string
}

type TTSProvider interface {
	Name() string
	Synthesize(ctx context.Context, req SpeechRequest) (SpeechResult, error)
}

type MockTTSProvider struct{}

func (MockTTSProvider) Name() string { return "mock-tts" }

func (MockTTSProvider) Synthesize(ctx context.Context, req SpeechRequest) (SpeechResult, error) {
	if err := ctx.Err(); err != nil {
		return SpeechResult{}, err
	}
	words := len(strings.Fields(req.Text))
	d := MockSpeechDurationMs(words)
	return SpeechResult{
		AudioURL:   fmt.Sprintf("%saudio/tts?words=%d&ms=%d", models.MockURLPrefix, words, d),
		DurationMs: d,
		Format:     "mp3",
	}, nil
}

// MockSpeechDurationMs is ceil(words / wpm * 60000) in integer arithmetic.
func MockSpeechDurationMs(words int) int {
	if words <= 0 {
		return 0
	}
	return (words*60000 + MockWordsPerMinute - 1) / MockWordsPerMinute
}

// HTTPTTSProvider is the slot for a hosted speech backend.
type HTTPTTSProvider struct {
	Endpoint string
	APIKey   string
}

func (p *HTTPTTSProvider) Name() string { return "http-tts" }

func (p *HTTPTTSProvider) Synthesize(ctx context.Context, req SpeechRequest) (SpeechResult, error) {
	return SpeechResult{}, apperr.Wrap(apperr.ErrProviderUnavailable, "tts", p.Name(), "backend not implemented", nil)
}
