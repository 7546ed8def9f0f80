package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/url"
	"strconv"

	"VideoPipeline-server/apperr"
	"VideoPipeline-server/models"
)

type ImageRequest struct {
	Prompt         string
	Width          int
	Height         int
	Style          string
	NegativePrompt string
}

type ImageResult struct {
	ImageURL string
	Width    int
	Height   int
	Format   string
}

type ImageProvider interface {
	Name() string
	Generate(ctx context.Context, req ImageRequest) (ImageResult, error)
}

// MockImageProvider returns sentinel URLs that encode the requested size and
// a seed derived from the prompt.
type MockImageProvider struct{}

func (MockImageProvider) Name() string { return "mock-image" }

func (MockImageProvider) Generate(ctx context.Context, req ImageRequest) (ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return ImageResult{}, err
	}
	if req.Width <= 0 || req.Height <= 0 {
		return ImageResult{}, apperr.Wrap(apperr.ErrValidation, "image", "mock generate",
			fmt.Sprintf("invalid size %dx%d", req.Width, req.Height), nil)
	}
	return ImageResult{
		ImageURL: MockImageURL(req.Width, req.Height, req.Prompt),
		Width:    req.Width,
		Height:   req.Height,
		Format:   "png",
	}, nil
}

// MockImageURL builds mock://image?w=..&h=..&seed=..&label=..
func MockImageURL(width, height int, prompt string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	q := url.Values{}
	q.Set("w", strconv.Itoa(width))
	q.Set("h", strconv.Itoa(height))
	q.Set("seed", strconv.FormatUint(uint64(h.Sum32()), 10))
	q.Set("label", prompt)
	return models.MockURLPrefix + "image?" + q.Encode()
}

// MockImageSpec is what a mock image URL encodes.
type MockImageSpec struct {
	Width  int
	Height int
	Seed   uint32
	Label  string
}

// ParseMockImageURL decodes a URL produced by MockImageURL.
func ParseMockImageURL(raw string) (MockImageSpec, error) {
	if !models.IsMockURL(raw) {
		return MockImageSpec{}, fmt.Errorf("not a mock url: %q", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return MockImageSpec{}, fmt.Errorf("parse mock url: %w", err)
	}
	q := u.Query()
	w, _ := strconv.Atoi(q.Get("w"))
	h, _ := strconv.Atoi(q.Get("h"))
	seed, _ := strconv.ParseUint(q.Get("seed"), 10, 32)
	return MockImageSpec{Width: w, Height: h, Seed: uint32(seed), Label: q.Get("label")}, nil
}

// HTTPImageProvider is the slot for a hosted diffusion backend.
type HTTPImageProvider struct {
	Endpoint string
	APIKey   string
}

func (p *HTTPImageProvider) Name() string { return "http-image" }

func (p *HTTPImageProvider) Generate(ctx context.Context, req ImageRequest) (ImageResult, error) {
	return ImageResult{}, apperr.Wrap(apperr.ErrProviderUnavailable, "image", p.Name(), "backend not implemented", nil)
}
