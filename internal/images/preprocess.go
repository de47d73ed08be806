package images

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"

	xdraw "golang.org/x/image/draw"

	"github.com/cardfolio/cardscan/internal/models"
)

// Processed is the output of preprocessing one image.
type Processed struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
	// Degraded marks the original bytes passed through untouched because
	// every processing stage failed.
	Degraded bool
}

// Preprocessor normalizes card images before recognition. For PSA-graded
// cards it isolates the label band at the top of the slab, where all the
// identifying text lives.
type Preprocessor struct {
	// LabelFraction is the share of image height the PSA label occupies.
	LabelFraction float64
	// MaxLabelHeight caps the label crop in pixels at working scale.
	MaxLabelHeight int
	// WorkingWidth is the width images are scaled down to before further
	// processing. Wider uploads waste provider tokens without helping OCR.
	WorkingWidth int
}

// NewPreprocessor returns a preprocessor with the tuned defaults.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		LabelFraction:  0.14,
		MaxLabelHeight: 220,
		WorkingWidth:   1280,
	}
}

// Prepare processes one image for recognition. It never fails: each stage
// falls back to the previous one, and as a last resort the original bytes are
// returned with Degraded set.
func (p *Preprocessor) Prepare(data []byte, mediaType string, hint models.CardType) Processed {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Warn("Image decode failed, passing original through", "err", err)
		return Processed{Data: data, MediaType: mediaType, Degraded: true}
	}

	working := p.scaleToWorking(toRGBA(src))

	if hint != models.CardTypePSALabel {
		encoded, err := encodePNG(working)
		if err != nil {
			slog.Warn("Image re-encode failed, passing original through", "err", err)
			return Processed{Data: data, MediaType: mediaType, Degraded: true}
		}
		b := working.Bounds()
		return Processed{Data: encoded, MediaType: "image/png", Width: b.Dx(), Height: b.Dy()}
	}

	cropped := p.cropLabel(working)
	enhanced := sharpen(enhanceLabel(cropped))

	encoded, err := encodePNG(enhanced)
	if err == nil {
		b := enhanced.Bounds()
		return Processed{Data: encoded, MediaType: "image/png", Width: b.Dx(), Height: b.Dy()}
	}
	slog.Warn("Label enhancement encode failed, using plain crop", "err", err)

	encoded, err = encodePNG(cropped)
	if err == nil {
		b := cropped.Bounds()
		return Processed{Data: encoded, MediaType: "image/png", Width: b.Dx(), Height: b.Dy()}
	}
	slog.Warn("Label crop encode failed, passing original through", "err", err)

	return Processed{Data: data, MediaType: mediaType, Degraded: true}
}

// scaleToWorking shrinks images wider than the working width. Smaller images
// are left alone; upscaling adds nothing for OCR.
func (p *Preprocessor) scaleToWorking(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	if p.WorkingWidth <= 0 || b.Dx() <= p.WorkingWidth {
		return img
	}
	h := b.Dy() * p.WorkingWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, p.WorkingWidth, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// cropLabel keeps the top band of the slab where the PSA label sits.
func (p *Preprocessor) cropLabel(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	labelH := int(float64(b.Dy()) * p.LabelFraction)
	if p.MaxLabelHeight > 0 && labelH > p.MaxLabelHeight {
		labelH = p.MaxLabelHeight
	}
	if labelH < 1 || labelH >= b.Dy() {
		return img
	}
	sub := img.SubImage(image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+labelH)).(*image.RGBA)
	// Re-anchor at the origin so later stages see a zero-based image.
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), labelH))
	draw.Draw(dst, dst.Bounds(), sub, sub.Bounds().Min, draw.Src)
	return dst
}

// Enhancement constants tuned on red-label PSA slabs: raised contrast and a
// slight desaturation keep dark text readable against the colored band.
const (
	contrastFactor   = 1.25
	brightnessOffset = 10
	saturationFactor = 0.85
)

func enhanceLabel(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			r, g, bl := float64(c.R), float64(c.G), float64(c.B)

			luma := 0.299*r + 0.587*g + 0.114*bl
			r = luma + (r-luma)*saturationFactor
			g = luma + (g-luma)*saturationFactor
			bl = luma + (bl-luma)*saturationFactor

			r = (r-128)*contrastFactor + 128 + brightnessOffset
			g = (g-128)*contrastFactor + 128 + brightnessOffset
			bl = (bl-128)*contrastFactor + 128 + brightnessOffset

			dst.SetRGBA(x, y, color.RGBA{clampByte(r), clampByte(g), clampByte(bl), c.A})
		}
	}
	return dst
}

// sharpen applies a 3x3 unsharp kernel. Border pixels are copied as is.
func sharpen(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			center := img.RGBAAt(x, y)
			up := img.RGBAAt(x, y-1)
			down := img.RGBAAt(x, y+1)
			left := img.RGBAAt(x-1, y)
			right := img.RGBAAt(x+1, y)

			r := 5*float64(center.R) - float64(up.R) - float64(down.R) - float64(left.R) - float64(right.R)
			g := 5*float64(center.G) - float64(up.G) - float64(down.G) - float64(left.G) - float64(right.G)
			bl := 5*float64(center.B) - float64(up.B) - float64(down.B) - float64(left.B) - float64(right.B)

			dst.SetRGBA(x, y, color.RGBA{clampByte(r), clampByte(g), clampByte(bl), center.A})
		}
	}
	return dst
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
