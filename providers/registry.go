package providers

import (
	"strings"

	"VideoPipeline-server/config"
	"VideoPipeline-server/logging"
)

// Registry picks a provider per family from configuration. The policy is the
// same for every family: mock when asked (or unset), real when a credential is
// present, otherwise mock with a warning.
type Registry struct {
	image  config.ProviderConfig
	tts    config.ProviderConfig
	music  config.ProviderConfig
	logger logging.Logger
}

func NewRegistry(image, tts, music config.ProviderConfig, logger logging.Logger) *Registry {
	return &Registry{image: image, tts: tts, music: music, logger: logger}
}

// Image selects the image provider. override, when non-nil, replaces the
// configured use_mock flag for this call.
func (r *Registry) Image(override *bool) ImageProvider {
	cfg := r.image
	return choose(r.logger, "image", useMock(cfg, override), cfg.APIKey,
		func() ImageProvider { return MockImageProvider{} },
		func() ImageProvider { return &HTTPImageProvider{Endpoint: cfg.Endpoint, APIKey: cfg.APIKey} })
}

func (r *Registry) TTS(override *bool) TTSProvider {
	cfg := r.tts
	return choose(r.logger, "tts", useMock(cfg, override), cfg.APIKey,
		func() TTSProvider { return MockTTSProvider{} },
		func() TTSProvider { return &HTTPTTSProvider{Endpoint: cfg.Endpoint, APIKey: cfg.APIKey} })
}

func (r *Registry) Music(override *bool) MusicProvider {
	cfg := r.music
	return choose(r.logger, "music", useMock(cfg, override), cfg.APIKey,
		func() MusicProvider { return MockMusicProvider{} },
		func() MusicProvider { return &HTTPMusicProvider{Endpoint: cfg.Endpoint, APIKey: cfg.APIKey} })
}

func useMock(cfg config.ProviderConfig, override *bool) bool {
	if override != nil {
		return *override
	}
	return cfg.MockEnabled()
}

func choose[T any](logger logging.Logger, family string, mock bool, apiKey string, newMock, newReal func() T) T {
	if mock {
		return newMock()
	}
	if strings.TrimSpace(apiKey) != "" {
		return newReal()
	}
	logger.Warn().Str("provider", family).Msg("real backend requested but no api key configured, falling back to mock")
	return newMock()
}
