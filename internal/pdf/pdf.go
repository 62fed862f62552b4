// Package pdf implements the layout canvas on top of fpdf.
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/pavelanni/exampaper/internal/config"
	"github.com/pavelanni/exampaper/internal/imagecache"
)

const (
	coreFamily = "Times"
	utf8Family = "body"
)

// Options configure a new Document.
type Options struct {
	Title string
	// FontFile is a TrueType font used for all text. Without it the core
	// Times font is used and text is translated to cp1252.
	FontFile string
	// CreatedAt is written as both creation and modification date so that
	// equal inputs produce equal bytes.
	CreatedAt time.Time
}

// CoreEncodable reports whether the core font can show s, which it can only
// do for text in cp1252.
func CoreEncodable(s string) bool {
	_, err := charmap.Windows1252.NewEncoder().String(s)
	return err == nil
}

// Document is an A4 portrait PDF in millimetres.
type Document struct {
	f          *fpdf.Fpdf
	family     string
	tr         func(string) string
	registered map[string]bool
}

// New creates an empty document.
func New(opts Options) (*Document, error) {
	f := fpdf.New("P", "mm", "A4", "")
	f.SetAutoPageBreak(false, 0)
	f.SetMargins(0, 0, 0)
	f.SetCatalogSort(true)
	f.SetCreator("exampaper", true)
	if opts.Title != "" {
		f.SetTitle(opts.Title, true)
	}
	if !opts.CreatedAt.IsZero() {
		f.SetCreationDate(opts.CreatedAt)
		f.SetModificationDate(opts.CreatedAt)
	}

	d := &Document{f: f, family: coreFamily, registered: make(map[string]bool)}
	if opts.FontFile != "" {
		for _, style := range []string{"", "B", "I", "BI"} {
			f.AddUTF8Font(utf8Family, style, opts.FontFile)
		}
		if err := f.Error(); err != nil {
			return nil, fmt.Errorf("load font %s: %w", opts.FontFile, err)
		}
		d.family = utf8Family
		d.tr = func(s string) string { return s }
	} else {
		d.tr = f.UnicodeTranslatorFromDescriptor("")
	}
	f.SetFont(d.family, "", 12)
	f.SetLineWidth(0.3)
	f.SetDrawColor(0, 0, 0)
	f.SetFillColor(0, 0, 0)
	return d, nil
}

func (d *Document) AddPage() { d.f.AddPage() }

func (d *Document) SetFont(fnt config.Font) {
	style := ""
	if fnt.Bold {
		style += "B"
	}
	if fnt.Italic {
		style += "I"
	}
	d.f.SetFont(d.family, style, fnt.Size)
}

func (d *Document) TextWidth(s string) float64 { return d.f.GetStringWidth(d.tr(s)) }

func (d *Document) Text(x, y float64, s string) { d.f.Text(x, y, d.tr(s)) }

func (d *Document) Line(x1, y1, x2, y2 float64) { d.f.Line(x1, y1, x2, y2) }

func (d *Document) Rect(x, y, w, h float64, fill bool) { d.f.Rect(x, y, w, h, style(fill)) }

func (d *Document) Circle(x, y, r float64, fill bool) { d.f.Circle(x, y, r, style(fill)) }

// Image embeds img, registering its bytes the first time it is drawn.
func (d *Document) Image(img *imagecache.Image, x, y, w, h float64) {
	opts := fpdf.ImageOptions{ImageType: string(img.Format)}
	if !d.registered[img.Name] {
		d.f.RegisterImageOptionsReader(img.Name, opts, bytes.NewReader(img.Data))
		d.registered[img.Name] = true
	}
	d.f.ImageOptions(img.Name, x, y, w, h, false, opts, 0, "")
}

func (d *Document) Err() error { return d.f.Error() }

// Bytes finalizes the document and returns its encoding.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.f.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// PageCount reports the number of pages added.
func (d *Document) PageCount() int { return d.f.PageCount() }

func style(fill bool) string {
	if fill {
		return "FD"
	}
	return "D"
}
