package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/lox/marinedash/internal/models"
)

// CardWidth and CardHeight are the standard Open Graph image dimensions.
const (
	CardWidth  = 1200
	CardHeight = 630
)

var (
	fontTitle   font.Face
	fontValue   font.Face
	fontRegular font.Face
	fontOnce    sync.Once
	fontErr     error
)

func loadFonts() {
	fontOnce.Do(func() {
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse goregular: %w", err)
			return
		}
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse gobold: %w", err)
			return
		}

		if fontTitle, err = newFace(bold, 64); err != nil {
			fontErr = err
			return
		}
		if fontValue, err = newFace(bold, 40); err != nil {
			fontErr = err
			return
		}
		fontRegular, fontErr = newFace(regular, 26)
	})
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create %.0fpt face: %w", size, err)
	}
	return face, nil
}

// GenerateCard renders a share card with the region's current values.
// The Go fonts have no Hangul glyphs, so the Latin region label is used.
func GenerateCard(rec *models.MarineRecord) ([]byte, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	cfg, err := rec.Region.Config()
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))
	drawBackground(img)

	white := color.RGBA{255, 255, 255, 255}
	lightGray := color.RGBA{190, 205, 225, 255}

	drawText(img, cfg.Label, 60, 110, white, fontTitle)
	drawText(img, "Marine conditions · "+rec.FetchedAt.In(kst).Format("2006-01-02 15:04")+" KST", 60, 160, lightGray, fontRegular)

	metrics := models.Metrics()
	colWidth := (CardWidth - 120) / 3
	for i, m := range metrics {
		info := m.Info()
		s, _ := rec.Series(m)

		x := 60 + (i%3)*colWidth
		y := 280 + (i/3)*150
		drawText(img, info.Label, x, y, lightGray, fontRegular)
		drawText(img, formatValue(s.Current, info), x, y+55, accent(info.Color), fontValue)
	}

	drawText(img, "marinedash", 60, CardHeight-30, lightGray, fontRegular)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

var kst = time.FixedZone("KST", 9*60*60)

func formatValue(v float64, info models.MetricInfo) string {
	if info.Unit == "index" {
		return fmt.Sprintf("%.*f", info.Precision, v)
	}
	return fmt.Sprintf("%.*f %s", info.Precision, v, info.Unit)
}

// drawBackground fills img with a dark blue vertical gradient.
func drawBackground(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		progress := float64(y) / float64(b.Dy())
		c := color.RGBA{uint8(8 + progress*10), uint8(30 + progress*25), uint8(60 + progress*45), 255}
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// accent parses a "#rrggbb" color, falling back to white.
func accent(hex string) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{255, 255, 255, 255}
	}
	return color.RGBA{r, g, b, 255}
}
