// Package rag holds the content preparation steps that run before embedding:
// loading files from disk and splitting text into chunks.
package rag

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Loader defines the contract for reading a file and extracting its text content.
type Loader interface {
	// Load reads the file at the given path and returns its text content.
	Load(path string) (string, error)
}

// TextLoader is a generic loader for plain text files (txt, md, code, json).
type TextLoader struct{}

func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

func (l *TextLoader) Load(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%s: not valid UTF-8 text", path)
	}
	return string(content), nil
}

// AutoLoader selects the loader based on file extension. Unknown extensions
// are read as text.
type AutoLoader struct {
	textLoader Loader
	pdfLoader  Loader
	docxLoader Loader
}

// LoaderOption configures an AutoLoader.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	logger *slog.Logger
}

// WithLoaderLogger sets the logger used to report skipped content.
func WithLoaderLogger(l *slog.Logger) LoaderOption {
	return func(o *loaderOptions) { o.logger = l }
}

func NewAutoLoader(opts ...LoaderOption) *AutoLoader {
	var o loaderOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &AutoLoader{
		textLoader: NewTextLoader(),
		pdfLoader:  NewPDFLoader(o.logger),
		docxLoader: NewDocxLoader(),
	}
}

func (l *AutoLoader) Load(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return l.pdfLoader.Load(path)
	case ".docx":
		return l.docxLoader.Load(path)
	default:
		return l.textLoader.Load(path)
	}
}
