// Package export is the single entry point that turns questions and an
// export configuration into a finished document. Every failure, including a
// panic inside a renderer, comes back as an unsuccessful Result.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/exampaper/internal/config"
	"github.com/pavelanni/exampaper/internal/i18n"
	"github.com/pavelanni/exampaper/internal/imagecache"
	"github.com/pavelanni/exampaper/internal/layout"
	"github.com/pavelanni/exampaper/internal/model"
	"github.com/pavelanni/exampaper/internal/pdf"
	"github.com/pavelanni/exampaper/internal/section"
	"github.com/pavelanni/exampaper/internal/textexport"
)

// Format names an output format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
)

// Formats lists every supported format.
var Formats = []Format{FormatPDF, FormatMarkdown, FormatText, FormatJSON, FormatHTML}

// ErrUnknownFormat is returned for a format outside Formats.
var ErrUnknownFormat = errors.New("unknown export format")

// DefaultPrefetchWorkers bounds concurrent image fetches.
const DefaultPrefetchWorkers = 4

// ParseFormat accepts a format name or a common alias ("markdown", "text").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return FormatPDF, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "html", "preview":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) contentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}

// Request describes one export call.
type Request struct {
	Format    Format
	Questions []model.QuestionRecord
	Config    *config.ExportConfiguration

	// Catalog localizes default labels and the result message. May be nil.
	Catalog *i18n.Catalog
	// Fetcher loads images. When nil every image renders as a placeholder.
	Fetcher         imagecache.Fetcher
	PrefetchWorkers int
	// Now stamps the filename and the PDF metadata. Zero means time.Now.
	Now time.Time
}

// Result is the outcome of Run.
type Result struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	CallID      string `json:"callId"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"-"`
	Pages       int    `json:"pages,omitempty"`
	Questions   int    `json:"questions"`
}

// Run renders req. It never panics and never returns partial data: on
// failure Data is nil and Message describes the error.
func Run(ctx context.Context, req Request) (res Result) {
	callID := uuid.NewString()
	log := slog.With("call_id", callID, "format", req.Format)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("export panicked", "panic", r)
			res = failed(callID, req.Catalog, fmt.Errorf("internal error: %v", r))
		}
	}()

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	s := resolveSettings(req, log)
	groups := section.Partition(req.Questions, s.SectionOrder, s.SectionEnabled)

	var (
		data  []byte
		pages int
		err   error
	)
	switch req.Format {
	case FormatPDF:
		data, pages, err = renderPDF(ctx, req, s, groups, now)
	case FormatMarkdown:
		data = []byte(textexport.Markdown(groups, s))
	case FormatText:
		data = []byte(textexport.Text(groups, s))
	case FormatHTML:
		data = textexport.PreviewHTML(textexport.Markdown(groups, s))
	case FormatJSON:
		data, err = MarshalQuestions(req.Questions)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, req.Format)
	}
	if err != nil {
		log.Error("export failed", "error", err)
		return failed(callID, req.Catalog, err)
	}

	n := section.Count(groups)
	if req.Format == FormatJSON {
		n = len(req.Questions)
	}
	log.Info("export done", "questions", n, "pages", pages, "bytes", len(data), "elapsed", time.Since(start))
	return Result{
		Success:     true,
		Message:     succeeded(req.Catalog, n),
		CallID:      callID,
		Filename:    GenerateFilename(s.Header.Title, scopeSuffix(s.Scope), now) + "." + string(req.Format),
		ContentType: req.Format.contentType(),
		Data:        data,
		Pages:       pages,
		Questions:   n,
	}
}

// resolveSettings localizes defaults from req.Catalog. A PDF without a font
// file can only show cp1252 text, so labels the core font cannot encode fall
// back to English.
func resolveSettings(req Request, log *slog.Logger) config.Settings {
	var tr config.Translator
	if req.Catalog != nil {
		tr = req.Catalog
	}
	s := config.Resolve(req.Config, tr)
	if req.Format != FormatPDF || s.Typography.FontFile != "" {
		return s
	}
	if tr != nil && !pdf.CoreEncodable(localizedText(s)) {
		log.Warn("no font file for localized labels, using English labels", "language", s.Language)
		s = config.Resolve(req.Config, nil)
	}
	for _, q := range req.Questions {
		if !pdf.CoreEncodable(q.Content + strings.Join(q.Options, "")) {
			log.Warn("question text outside the core font, set a font file", "question_id", q.ID)
			break
		}
	}
	return s
}

// localizedText joins the strings Resolve takes from a translator.
func localizedText(s config.Settings) string {
	l := s.Labels
	parts := []string{
		l.Answer, l.Explanation, l.Notes, l.TrueFalse, l.MissingContent,
		l.ParentSignature, l.Time, l.Total, l.Date, l.Number,
	}
	parts = append(parts, s.StudentInfo.Fields...)
	for _, t := range model.AllTypes {
		sec := s.Sections[t]
		parts = append(parts, sec.Title, sec.Instruction)
	}
	return strings.Join(parts, "\n")
}

func renderPDF(ctx context.Context, req Request, s config.Settings, groups []section.Group, now time.Time) ([]byte, int, error) {
	var images *imagecache.Cache
	if req.Fetcher != nil {
		images = imagecache.New(req.Fetcher)
		workers := req.PrefetchWorkers
		if workers <= 0 {
			workers = DefaultPrefetchWorkers
		}
		if err := images.Prefetch(ctx, imageURLs(groups, s), workers); err != nil {
			slog.Warn("image prefetch interrupted", "error", err)
		}
	}

	doc, err := pdf.New(pdf.Options{Title: s.Header.Title, FontFile: s.Typography.FontFile, CreatedAt: now})
	if err != nil {
		return nil, 0, err
	}
	e := layout.NewEngine(ctx, doc, s, images)
	if s.Scope.IncludesPaper() {
		if err := e.RenderPaper(groups); err != nil {
			return nil, 0, fmt.Errorf("render paper: %w", err)
		}
	}
	if s.Scope.IncludesAnswerSheet() && s.AnswerSheet.Enabled {
		if err := e.RenderAnswerSheet(groups); err != nil {
			return nil, 0, fmt.Errorf("render answer sheet: %w", err)
		}
	}
	data, err := doc.Bytes()
	if err != nil {
		return nil, 0, err
	}
	return data, doc.PageCount(), nil
}

// imageURLs lists the images the layout will ask for, in document order.
func imageURLs(groups []section.Group, s config.Settings) []string {
	var urls []string
	answers := s.Scope.IncludesAnswerSheet() && s.AnswerSheet.Enabled && s.AnswerSheet.ShowAnswerImages
	for _, g := range groups {
		for _, q := range g.Questions {
			if s.Scope.IncludesPaper() && q.QuestionImagePath != "" {
				urls = append(urls, q.QuestionImagePath)
			}
			if answers && q.Type == model.TypeImageQuestion && q.AnswerImagePath != "" {
				urls = append(urls, q.AnswerImagePath)
			}
		}
	}
	return urls
}

// MarshalQuestions encodes records in the JSON export shape.
func MarshalQuestions(records []model.QuestionRecord) ([]byte, error) {
	out := make([]model.QuestionExport, len(records))
	for i, q := range records {
		out[i] = model.NewQuestionExport(q)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}
	return buf.Bytes(), nil
}

func succeeded(c *i18n.Catalog, n int) string {
	if c == nil {
		if n == 1 {
			return "Exported 1 question."
		}
		return fmt.Sprintf("Exported %d questions.", n)
	}
	return c.Tp("ExportSucceeded", n)
}

func failed(callID string, c *i18n.Catalog, err error) Result {
	msg := "Export failed: " + err.Error()
	if c != nil {
		msg = c.Td("ExportFailed", map[string]any{"Error": err.Error()})
	}
	return Result{CallID: callID, Message: msg}
}

func scopeSuffix(s config.Scope) string {
	switch s {
	case config.ScopeQuestionsOnly:
		return "_questions"
	case config.ScopeAnswerSheetOnly:
		return "_answers"
	}
	return ""
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9\-_\s\x{4e00}-\x{9fff}]`)

// GenerateFilename builds "<title>_<YYYY-MM-DD_HH-MM><suffix>" with every
// character outside letters, digits, '-', '_', whitespace and CJK ideographs
// replaced by '_'. The timestamp is in UTC.
func GenerateFilename(title, suffix string, now time.Time) string {
	clean := unsafeFilename.ReplaceAllString(title, "_")
	return clean + "_" + now.UTC().Format("2006-01-02_15-04") + suffix
}

// WriteFile stores a successful result in dir under its filename. The data
// goes to a temporary file first, so a failed write leaves nothing behind.
func WriteFile(dir string, res Result) (string, error) {
	if !res.Success {
		return "", fmt.Errorf("write export: %s", res.Message)
	}
	tmp, err := os.CreateTemp(dir, ".exampaper-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(res.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	dst := filepath.Join(dir, res.Filename)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("rename to %s: %w", dst, err)
	}
	return dst, nil
}
