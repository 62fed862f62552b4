package layout

import (
	"errors"
	"unicode/utf8"

	"github.com/pavelanni/exampaper/internal/config"
	"github.com/pavelanni/exampaper/internal/imagecache"
)

// Canvas is the drawing surface the engine lays pages onto. Coordinates are
// millimetres from the top-left corner of the current page; Text takes the
// baseline y.
type Canvas interface {
	AddPage()
	SetFont(f config.Font)
	TextWidth(s string) float64
	Text(x, y float64, s string)
	Line(x1, y1, x2, y2 float64)
	Rect(x, y, w, h float64, fill bool)
	Circle(x, y, r float64, fill bool)
	Image(img *imagecache.Image, x, y, w, h float64)
	Err() error
}

// Op is one recorded drawing call.
type Op struct {
	Kind string // "page", "text", "line", "rect", "circle", "image"
	Page int
	X, Y float64
	W, H float64
	Text string
	Font config.Font
	Fill bool
}

// Recorder is a Canvas that records calls instead of drawing. Glyphs are
// treated as half an em wide.
type Recorder struct {
	Ops  []Op
	page int
	font config.Font
}

func (r *Recorder) AddPage() {
	r.page++
	r.Ops = append(r.Ops, Op{Kind: "page", Page: r.page})
}

func (r *Recorder) SetFont(f config.Font) { r.font = f }

func (r *Recorder) TextWidth(s string) float64 {
	return float64(utf8.RuneCountInString(s)) * r.font.Size * ptToMM * 0.5
}

func (r *Recorder) Text(x, y float64, s string) {
	r.Ops = append(r.Ops, Op{Kind: "text", Page: r.page, X: x, Y: y, Text: s, Font: r.font})
}

func (r *Recorder) Line(x1, y1, x2, y2 float64) {
	r.Ops = append(r.Ops, Op{Kind: "line", Page: r.page, X: x1, Y: y1, W: x2 - x1, H: y2 - y1})
}

func (r *Recorder) Rect(x, y, w, h float64, fill bool) {
	r.Ops = append(r.Ops, Op{Kind: "rect", Page: r.page, X: x, Y: y, W: w, H: h, Fill: fill})
}

func (r *Recorder) Circle(x, y, rad float64, fill bool) {
	r.Ops = append(r.Ops, Op{Kind: "circle", Page: r.page, X: x, Y: y, W: rad, H: rad, Fill: fill})
}

func (r *Recorder) Image(img *imagecache.Image, x, y, w, h float64) {
	r.Ops = append(r.Ops, Op{Kind: "image", Page: r.page, X: x, Y: y, W: w, H: h, Text: img.Name})
}

func (r *Recorder) Err() error {
	if r.page == 0 && len(r.Ops) > 0 {
		return errors.New("drawing before the first page")
	}
	return nil
}

// Pages returns the number of pages added.
func (r *Recorder) Pages() int { return r.page }

// Texts returns the text of every text op in drawing order.
func (r *Recorder) Texts() []string {
	var out []string
	for _, op := range r.Ops {
		if op.Kind == "text" {
			out = append(out, op.Text)
		}
	}
	return out
}
