package rag

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoPDFText is returned when no page of a PDF yields any text.
var ErrNoPDFText = errors.New("no extractable text in PDF")

// PDFLoader extracts the plain text of every page. Pages that fail to parse
// are logged and skipped; the file only fails when no page could be read.
type PDFLoader struct {
	logger *slog.Logger
}

func NewPDFLoader(logger *slog.Logger) *PDFLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFLoader{logger: logger}
}

func (l *PDFLoader) Load(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open PDF %s: %w", path, err)
	}
	defer f.Close()

	return l.extract(path, readerPages{r})
}

// pageSource is the part of a PDF document the loader reads.
type pageSource interface {
	NumPage() int
	// PageText returns the text of page i (1-based). ok is false for pages
	// without content.
	PageText(i int) (text string, ok bool, err error)
}

type readerPages struct{ r *pdf.Reader }

func (p readerPages) NumPage() int { return p.r.NumPage() }

func (p readerPages) PageText(i int) (text string, ok bool, err error) {
	// The parser panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("parse page: %v", rec)
		}
	}()
	page := p.r.Page(i)
	if page.V.IsNull() {
		return "", false, nil
	}
	text, err = page.GetPlainText(nil)
	return text, err == nil, err
}

func (l *PDFLoader) extract(path string, src pageSource) (string, error) {
	var (
		pages  []string
		failed int
	)
	total := src.NumPage()
	for i := 1; i <= total; i++ {
		text, ok, err := src.PageText(i)
		if err != nil {
			failed++
			l.logger.Warn("[Loader] skipping unreadable PDF page", "path", path, "page", i, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		if failed > 0 {
			return "", fmt.Errorf("%s: %w (%d of %d pages failed)", path, ErrNoPDFText, failed, total)
		}
		return "", fmt.Errorf("%s: %w", path, ErrNoPDFText)
	}
	if failed > 0 {
		l.logger.Info("[Loader] PDF loaded partially", "path", path, "pages", len(pages), "failed", failed)
	}
	return strings.Join(pages, "\n\n"), nil
}
