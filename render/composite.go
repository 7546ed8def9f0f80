package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"VideoPipeline-server/config"
	"VideoPipeline-server/models"
	"VideoPipeline-server/providers"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

var (
	blankBackground = color.RGBA{R: 0x1a, G: 0x1a, B: 0x1a, A: 0xff}
	bandColor       = color.NRGBA{A: 0x99}
)

// Compositor produces the still frame for a scene: a background sized to the
// output plus the overlay band with wrapped caption text.
type Compositor struct {
	font       *opentype.Font
	fontSize   float64
	sideMargin int
	lineHeight int
	fetcher    Fetcher
}

func NewCompositor(cfg config.RenderConfig, fetcher Fetcher) (*Compositor, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse overlay font: %w", err)
	}
	return &Compositor{
		font:       f,
		fontSize:   cfg.FontSize,
		sideMargin: cfg.SideMargin,
		lineHeight: cfg.LineHeight,
		fetcher:    fetcher,
	}, nil
}

// SceneStill composes the scene's frame and writes it as PNG to dst.
func (c *Compositor) SceneStill(ctx context.Context, scene *models.Scene, width, height int, dst string) error {
	img, err := c.Background(ctx, scene.ImageAsset, width, height, filepath.Dir(dst))
	if err != nil {
		return err
	}
	if err := c.DrawOverlay(img, scene.Overlay()); err != nil {
		return err
	}
	return writePNG(dst, img)
}

// Background returns the scene's backdrop at exactly width x height. Missing
// images become a flat dark frame and mock images a flat color picked from
// the URL's seed. Real images are fetched, decoded and cover-scaled.
func (c *Compositor) Background(ctx context.Context, asset *models.Asset, width, height int, scratch string) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	switch {
	case asset == nil:
		fill(img, blankBackground)
		return img, nil
	case asset.IsMock():
		spec, err := providers.ParseMockImageURL(asset.URL)
		if err != nil {
			fill(img, blankBackground)
			return img, nil
		}
		fill(img, seedColor(spec.Seed))
		return img, nil
	}

	if c.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured for %s", asset.URL)
	}
	local := filepath.Join(scratch, "src_"+asset.ID)
	if err := c.fetcher.Fetch(ctx, asset.URL, local); err != nil {
		return nil, err
	}
	src, err := decodeImage(local)
	if err != nil {
		return nil, fmt.Errorf("decode image asset %s: %w", asset.ID, err)
	}
	draw.CatmullRom.Scale(img, img.Bounds(), src, coverRect(src.Bounds(), width, height), draw.Src, nil)
	return img, nil
}

// DrawOverlay darkens the bottom third and centers the wrapped text inside it.
func (c *Compositor) DrawOverlay(img *image.RGBA, text string) error {
	b := img.Bounds()
	bandTop := b.Max.Y - b.Dy()/3
	band := image.Rect(b.Min.X, bandTop, b.Max.X, b.Max.Y)
	draw.Draw(img, band, &image.Uniform{C: bandColor}, image.Point{}, draw.Over)

	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{Size: c.fontSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return fmt.Errorf("overlay face: %w", err)
	}
	defer face.Close()

	maxWidth := b.Dx() - 2*c.sideMargin
	lines := WrapText(text, maxWidth, func(s string) int { return font.MeasureString(face, s).Ceil() })
	if len(lines) == 0 {
		return nil
	}

	m := face.Metrics()
	ascent, descent := m.Ascent.Ceil(), m.Descent.Ceil()
	blockTop := bandTop + (band.Dy()-len(lines)*c.lineHeight)/2
	if blockTop < b.Min.Y {
		blockTop = b.Min.Y
	}
	d := &font.Drawer{Dst: img, Src: image.White, Face: face}
	for i, line := range lines {
		lineTop := blockTop + i*c.lineHeight
		baseline := lineTop + (c.lineHeight-(ascent+descent))/2 + ascent
		x := b.Min.X + (b.Dx()-d.MeasureString(line).Ceil())/2
		d.Dot = fixed.P(x, baseline)
		d.DrawString(line)
	}
	return nil
}

// coverRect is the centered region of src with the target's aspect ratio.
func coverRect(src image.Rectangle, width, height int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw*height > sh*width {
		cw := sh * width / height
		x0 := src.Min.X + (sw-cw)/2
		return image.Rect(x0, src.Min.Y, x0+cw, src.Max.Y)
	}
	ch := sw * height / width
	y0 := src.Min.Y + (sh-ch)/2
	return image.Rect(src.Min.X, y0, src.Max.X, y0+ch)
}

func seedColor(seed uint32) color.RGBA {
	return color.RGBA{
		R: uint8(40 + seed%120),
		G: uint8(40 + (seed>>8)%120),
		B: uint8(40 + (seed>>16)%120),
		A: 0xff,
	}
}

func fill(img *image.RGBA, c color.Color) {
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create still %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode still %s: %w", path, err)
	}
	return f.Close()
}
