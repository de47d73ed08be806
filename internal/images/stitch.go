package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"

	"github.com/cardfolio/cardscan/internal/models"
)

// Placement records where one label landed on the composite and which batch
// position it came from.
type Placement struct {
	Index  int `json:"index"`
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Composite is a grid of label images flattened into one PNG. It is consumed
// immediately by the dispatcher and never persisted.
type Composite struct {
	Data       []byte
	Width      int
	Height     int
	Rows       int
	Cols       int
	Placements []Placement
	// CompressionRatio is the summed input size divided by the composite
	// size, recorded for telemetry.
	CompressionRatio float64
}

// Stitcher lays out small label crops on a shared canvas so a batch costs one
// provider call instead of N.
type Stitcher struct {
	MaxWidth      int
	MaxHeight     int
	Spacing       int
	TargetAspect  float64
	MeanSizeLimit int64
}

// NewStitcher returns a stitcher with the provider-friendly defaults: 2048px
// canvas ceiling, 10px spacing, 3:2 target aspect, 2 MB mean input limit.
func NewStitcher() *Stitcher {
	return &Stitcher{
		MaxWidth:      2048,
		MaxHeight:     2048,
		Spacing:       10,
		TargetAspect:  1.5,
		MeanSizeLimit: 2 << 20,
	}
}

// ShouldStitch reports whether a batch qualifies for composite dispatch:
// at least two images, every member a PSA label or a multi-card request,
// stitching enabled, and mean image size under the limit.
func (s *Stitcher) ShouldStitch(tasks []models.RecognitionTask) bool {
	if len(tasks) < 2 {
		return false
	}
	var total int64
	for _, t := range tasks {
		if !t.Options.EnableStitching {
			return false
		}
		if t.CardType != models.CardTypePSALabel && !t.Options.MultiCard {
			return false
		}
		total += t.Size
	}
	return total/int64(len(tasks)) < s.MeanSizeLimit
}

// Stitch composes the given images into one grid PNG. Images are placed in
// input order, row-major, centered in uniform cells sized to the largest
// label. Any decode failure poisons the whole batch.
func (s *Stitcher) Stitch(imgs [][]byte) (*Composite, error) {
	if len(imgs) < 2 {
		return nil, &models.StitchingError{Err: fmt.Errorf("need at least 2 images, got %d", len(imgs))}
	}

	decoded := make([]*image.RGBA, len(imgs))
	var totalIn int64
	maxW, maxH := 0, 0
	for i, data := range imgs {
		src, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, &models.StitchingError{Err: fmt.Errorf("failed to decode image %d: %w", i, err)}
		}
		decoded[i] = toRGBA(src)
		b := decoded[i].Bounds()
		if b.Dx() > maxW {
			maxW = b.Dx()
		}
		if b.Dy() > maxH {
			maxH = b.Dy()
		}
		totalIn += int64(len(data))
	}

	rows, cols := s.selectGrid(len(imgs), maxW, maxH)
	width := s.canvasSpan(cols, maxW)
	height := s.canvasSpan(rows, maxH)

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	placements := make([]Placement, len(decoded))
	for i, img := range decoded {
		b := img.Bounds()
		row, col := i/cols, i%cols
		cellX := s.Spacing + col*(maxW+s.Spacing)
		cellY := s.Spacing + row*(maxH+s.Spacing)
		x := cellX + (maxW-b.Dx())/2
		y := cellY + (maxH-b.Dy())/2
		draw.Draw(canvas, image.Rect(x, y, x+b.Dx(), y+b.Dy()), img, b.Min, draw.Src)
		placements[i] = Placement{Index: i, X: x, Y: y, Width: b.Dx(), Height: b.Dy()}
	}

	data, err := encodePNG(canvas)
	if err != nil {
		return nil, &models.StitchingError{Err: fmt.Errorf("failed to encode composite: %w", err)}
	}

	ratio := 0.0
	if len(data) > 0 {
		ratio = float64(totalIn) / float64(len(data))
	}
	slog.Info("Stitched batch into composite",
		"labels", len(imgs),
		"grid", fmt.Sprintf("%dx%d", rows, cols),
		"width", width,
		"height", height,
		"compression_ratio", fmt.Sprintf("%.2f", ratio))

	return &Composite{
		Data:             data,
		Width:            width,
		Height:           height,
		Rows:             rows,
		Cols:             cols,
		Placements:       placements,
		CompressionRatio: ratio,
	}, nil
}

// selectGrid picks the layout that packs tightest and sits closest to the
// target aspect while staying inside the canvas ceiling. When no layout fits,
// a single column is used regardless of the ceiling.
func (s *Stitcher) selectGrid(n, maxW, maxH int) (rows, cols int) {
	bestRows, bestCols := 0, 0
	bestEff, bestDev := -1.0, math.MaxFloat64
	for c := 1; c <= n; c++ {
		r := (n + c - 1) / c
		w := s.canvasSpan(c, maxW)
		h := s.canvasSpan(r, maxH)
		if w > s.MaxWidth || h > s.MaxHeight {
			continue
		}
		eff := float64(n) / float64(c*r)
		dev := math.Abs(float64(w)/float64(h) - s.TargetAspect)
		if eff > bestEff || (eff == bestEff && dev < bestDev) {
			bestRows, bestCols = r, c
			bestEff, bestDev = eff, dev
		}
	}
	if bestCols == 0 {
		return n, 1
	}
	return bestRows, bestCols
}

// canvasSpan is the composite extent for a count of cells along one axis:
// outer margins plus cells plus inter-cell spacing.
func (s *Stitcher) canvasSpan(cells, cellExtent int) int {
	return 2*s.Spacing + cells*cellExtent + (cells-1)*s.Spacing
}
