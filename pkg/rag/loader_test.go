package rag

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDocx(t *testing.T, path, body string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func TestTextLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	got, err := NewTextLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", got)

	bin := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(bin, []byte{0xff, 0xfe, 0xfd}, 0o644))
	_, err = NewTextLoader().Load(bin)
	assert.Error(t, err)

	_, err = NewTextLoader().Load(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAutoLoaderDispatchesDocx(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.DOCX")
	writeDocx(t, path, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body><w:p><w:r><w:t>Hello docx</w:t></w:r></w:p></w:body></w:document>`)

	got, err := NewAutoLoader().Load(path)
	require.NoError(t, err)
	assert.Contains(t, got, "Hello docx")
}

func TestDocxLoaderRejectsInvalidArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := NewDocxLoader().Load(path)
	assert.Error(t, err)
}

func TestDocxHeadings(t *testing.T) {
	assert.Equal(t, "# ", headingPrefix("Heading1"))
	assert.Equal(t, "## ", headingPrefix("heading 2"))
	assert.Equal(t, "", headingPrefix("Normal"))
}

// fakePages serves page texts by number; errs marks pages that fail.
type fakePages struct {
	texts map[int]string
	errs  map[int]error
	total int
}

func (p fakePages) NumPage() int { return p.total }

func (p fakePages) PageText(i int) (string, bool, error) {
	if err := p.errs[i]; err != nil {
		return "", false, err
	}
	text, ok := p.texts[i]
	return text, ok, nil
}

func TestPDFExtractSkipsBrokenPages(t *testing.T) {
	var logs bytes.Buffer
	l := NewPDFLoader(slog.New(slog.NewTextHandler(&logs, nil)))

	got, err := l.extract("report.pdf", fakePages{
		total: 4,
		texts: map[int]string{1: "  first page \n", 3: "third page", 4: "   "},
		errs:  map[int]error{2: errors.New("bad content stream")},
	})
	require.NoError(t, err)
	assert.Equal(t, "first page\n\nthird page", got)
	assert.Contains(t, logs.String(), "page=2")
	assert.Contains(t, logs.String(), "bad content stream")
}

func TestPDFExtractFailsWithoutText(t *testing.T) {
	l := NewPDFLoader(slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := l.extract("scan.pdf", fakePages{total: 2, texts: map[int]string{1: ""}})
	assert.ErrorIs(t, err, ErrNoPDFText)

	_, err = l.extract("broken.pdf", fakePages{total: 1, errs: map[int]error{1: errors.New("boom")}})
	require.ErrorIs(t, err, ErrNoPDFText)
	assert.Contains(t, err.Error(), "1 of 1 pages failed")
}

func TestAutoLoaderRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not a pdf"), 0o644))

	_, err := NewAutoLoader(WithLoaderLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))).Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open PDF")
}
