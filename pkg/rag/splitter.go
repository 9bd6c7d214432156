package rag

import (
	"strings"
	"unicode/utf8"

	"github.com/sanonone/kektorflow/pkg/core/text"
	"github.com/sanonone/kektorflow/pkg/core/types"
)

// Splitter defines the interface for splitting text into chunks.
type Splitter interface {
	SplitText(text string) []string
}

// SplitterConfig holds the chunking parameters shared by every strategy.
type SplitterConfig struct {
	// "recursive", "code", "markdown" or "fixed". Empty picks a strategy from
	// the content language.
	Strategy     string `yaml:"strategy" json:"strategy"`
	ChunkSize    int    `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// DefaultSplitterConfig returns the chunking defaults.
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{ChunkSize: 500, ChunkOverlap: 50}
}

// RecursiveCharacterSplitter splits text recursively using a list of separators.
// It tries to keep related text together (paragraphs, then sentences, then words).
type RecursiveCharacterSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// FixedSplitter cuts text into fixed rune windows.
type FixedSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

func (s *FixedSplitter) SplitText(t string) []string {
	return text.Contents(text.FixedSizeChunker(t, s.ChunkSize, s.ChunkOverlap))
}

// NewSplitter creates the splitter for a piece of content. An explicit
// strategy in cfg wins over the language.
func NewSplitter(cfg SplitterConfig, lang types.Language) Splitter {
	size := cfg.ChunkSize
	if size <= 0 {
		size = 500
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 {
		overlap = 0
	}

	strategy := cfg.Strategy
	if strategy == "" {
		switch {
		case lang == types.LanguageMarkdown || lang == types.LanguageRST:
			strategy = "markdown"
		case lang.IsCode():
			strategy = "code"
		default:
			strategy = "recursive"
		}
	}

	switch strategy {
	case "code":
		return NewCodeSplitter(lang, size, overlap)
	case "markdown", "md":
		return &RecursiveCharacterSplitter{
			ChunkSize:    size,
			ChunkOverlap: overlap,
			Separators:   []string{"\n## ", "\n### ", "\n\n", "\n", " ", ""},
		}
	case "fixed":
		return &FixedSplitter{ChunkSize: size, ChunkOverlap: overlap}
	default:
		return NewRecursiveSplitter(size, overlap)
	}
}

// NewRecursiveSplitter creates a splitter with default separators suitable for generic text
func NewRecursiveSplitter(chunkSize, chunkOverlap int) *RecursiveCharacterSplitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}

	return &RecursiveCharacterSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   []string{"\n\n", "\n", " ", ""},
	}
}

// codeSeparators are tried before the generic line/word separators.
var codeSeparators = map[types.Language][]string{
	types.LanguageGo:         {"\nfunc ", "\ntype ", "\nvar ", "\nconst "},
	types.LanguagePython:     {"\nclass ", "\ndef ", "\n\tdef "},
	types.LanguageJavaScript: {"\nfunction ", "\nconst ", "\nlet ", "\nclass "},
	types.LanguageTypeScript: {"\nfunction ", "\nconst ", "\ninterface ", "\nclass "},
	types.LanguageJava:       {"\nclass ", "\npublic ", "\nprotected ", "\nprivate "},
	types.LanguageKotlin:     {"\nclass ", "\nfun ", "\nval ", "\nvar "},
	types.LanguageRust:       {"\nfn ", "\nimpl ", "\nstruct ", "\nenum "},
	types.LanguageRuby:       {"\nclass ", "\ndef ", "\nmodule "},
	types.LanguageCPP:        {"\nclass ", "\nvoid ", "\nint ", "\nnamespace "},
	types.LanguageC:          {"\nvoid ", "\nint ", "\nstruct ", "\nstatic "},
	types.LanguageCSharp:     {"\nclass ", "\nnamespace ", "\npublic ", "\nprivate "},
	types.LanguagePHP:        {"\nfunction ", "\nclass "},
}

// NewCodeSplitter creates a splitter that prefers cutting at top-level
// declarations of the given language.
func NewCodeSplitter(lang types.Language, chunkSize, chunkOverlap int) *RecursiveCharacterSplitter {
	seps, ok := codeSeparators[lang]
	if !ok {
		seps = []string{"\nfunc", "\ntype", "\nclass"}
	}
	separators := append(append([]string{}, seps...), "\n\n", "\n", " ", "")
	return &RecursiveCharacterSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   separators,
	}
}

func (s *RecursiveCharacterSplitter) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.recursiveSplit(text, s.Separators)
}

// recursiveSplit tries to split text by the first separator. Parts that are
// still too big are split again with the next separator.
func (s *RecursiveCharacterSplitter) recursiveSplit(text string, separators []string) []string {
	if len(separators) == 0 {
		return []string{text}
	}

	separator := separators[0]
	nextSeparators := separators[1:]

	// strings.Split returns a single part when the separator is absent.
	parts := strings.Split(text, separator)
	if len(parts) == 1 && separator != "" {
		return s.recursiveSplit(text, nextSeparators)
	}

	var goodSplits []string
	for _, part := range parts {
		if part == "" {
			continue
		}

		if utf8.RuneCountInString(part) < s.ChunkSize {
			goodSplits = append(goodSplits, part)
			continue
		}
		if len(nextSeparators) > 0 {
			goodSplits = append(goodSplits, s.recursiveSplit(part, nextSeparators)...)
		} else {
			goodSplits = append(goodSplits, part)
		}
	}

	return s.mergeSplits(goodSplits, separator)
}

// mergeSplits joins small pieces with the original separator until they
// approach ChunkSize.
func (s *RecursiveCharacterSplitter) mergeSplits(splits []string, separator string) []string {
	var mergedDocs []string
	var currentDoc []string
	currentLen := 0
	sepLen := utf8.RuneCountInString(separator)

	for _, split := range splits {
		splitLen := utf8.RuneCountInString(split)

		if currentLen+splitLen+(len(currentDoc)*sepLen) > s.ChunkSize && len(currentDoc) > 0 {
			mergedDocs = append(mergedDocs, strings.Join(currentDoc, separator))

			if s.ChunkOverlap > 0 {
				currentDoc = s.removeFirstUntilOverlap(currentDoc, separator, s.ChunkOverlap)
				currentLen = 0
				for _, p := range currentDoc {
					currentLen += utf8.RuneCountInString(p)
				}
				if len(currentDoc) > 1 {
					currentLen += (len(currentDoc) - 1) * sepLen
				}
			} else {
				currentDoc = nil
				currentLen = 0
			}
		}

		currentDoc = append(currentDoc, split)
		currentLen += splitLen
	}

	if len(currentDoc) > 0 {
		mergedDocs = append(mergedDocs, strings.Join(currentDoc, separator))
	}

	return mergedDocs
}

// removeFirstUntilOverlap drops elements from the head of parts until the
// remaining combined length (plus separators) is <= overlapSize.
func (s *RecursiveCharacterSplitter) removeFirstUntilOverlap(parts []string, separator string, overlapSize int) []string {
	sepLen := utf8.RuneCountInString(separator)
	totalLen := 0
	for _, p := range parts {
		totalLen += utf8.RuneCountInString(p)
	}
	if len(parts) > 1 {
		totalLen += (len(parts) - 1) * sepLen
	}

	newParts := parts
	for len(newParts) > 0 && totalLen > overlapSize {
		removed := newParts[0]
		newParts = newParts[1:]

		totalLen -= utf8.RuneCountInString(removed)
		if len(newParts) > 0 {
			totalLen -= sepLen
		}
	}
	return newParts
}
