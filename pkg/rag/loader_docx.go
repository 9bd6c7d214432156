package rag

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// DocxLoader extracts text from .docx files preserving basic structure (Headers).
type DocxLoader struct{}

func NewDocxLoader() *DocxLoader {
	return &DocxLoader{}
}

func (l *DocxLoader) Load(path string) (string, error) {
	// 1. Open the .docx file as a ZIP archive
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx zip: %w", err)
	}
	defer r.Close()

	// 2. Find "word/document.xml"
	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}

	if docFile == nil {
		return "", fmt.Errorf("invalid docx: word/document.xml not found")
	}

	// 3. Open the XML file
	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	// 4. Parse XML manually to extract text and styles
	text, err := parseDocxXML(rc)
	if err != nil {
		return "", err
	}

	return text, nil
}

// parseDocxXML streams word/document.xml and renders paragraphs as
// Markdown-like text. Heading styles become "#" prefixes so the markdown
// splitter can cut at section boundaries.
func parseDocxXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var result strings.Builder

	var para strings.Builder
	var style string
	inParagraph, inText := false, false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				inParagraph = true
				para.Reset()
				style = ""
			case "pStyle":
				for _, attr := range el.Attr {
					if attr.Name.Local == "val" {
						style = attr.Value
					}
				}
			case "t":
				inText = true
			}

		case xml.CharData:
			if inParagraph && inText {
				para.Write(el)
			}

		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				if inParagraph && strings.TrimSpace(para.String()) != "" {
					result.WriteString(headingPrefix(style))
					result.WriteString(para.String())
					result.WriteString("\n\n")
				}
				inParagraph = false
			}
		}
	}

	slog.Debug("[DOCX] Extracted chars", "count", result.Len())
	return result.String(), nil
}

// headingPrefix maps Word heading styles ("Heading1", "heading 2") to
// Markdown prefixes.
func headingPrefix(style string) string {
	if !strings.Contains(strings.ToLower(style), "heading") {
		return ""
	}
	switch {
	case strings.Contains(style, "1"):
		return "# "
	case strings.Contains(style, "2"):
		return "## "
	case strings.Contains(style, "3"):
		return "### "
	}
	return ""
}
