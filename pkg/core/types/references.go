package types

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Kind is the closed set of reference variants.
type Kind string

const (
	KindMessage       Kind = "message"
	KindFile          Kind = "file"
	KindFileContent   Kind = "file_content"
	KindCodeExecution Kind = "code_execution"
	KindToolCall      Kind = "tool_call"
)

// Reference is a content unit owned by a DataCluster.
type Reference interface {
	// ID is the stable identifier used to group chunks back to their owner.
	ID() string
	Kind() Kind
	// String is the canonical textual form, used as embedding input.
	String() string
}

// Embeddable is implemented by references that can carry embedding chunks.
type Embeddable interface {
	Reference
	Embeddings() EmbeddingList
	SetEmbeddings(EmbeddingList)
}

// identified is implemented by every reference so the cluster can assign ids.
type identified interface {
	setID(id string)
}

// embeddingHolder carries the chunk list for the embeddable variants.
type embeddingHolder struct {
	Embedding EmbeddingList `json:"embedding,omitempty"`
}

func (h *embeddingHolder) Embeddings() EmbeddingList     { return h.Embedding }
func (h *embeddingHolder) SetEmbeddings(l EmbeddingList) { h.Embedding = l }

// NewID returns a fresh reference identifier.
func NewID() string {
	return uuid.NewString()
}

// MessageReference is a chat message.
type MessageReference struct {
	RefID       string `json:"id"`
	Role        string `json:"role"`
	Content     string `json:"content"`
	GeneratedBy string `json:"generated_by,omitempty"`
	embeddingHolder
}

// NewSystemMessage builds a message authored by the system.
func NewSystemMessage(content string) *MessageReference {
	return &MessageReference{RefID: NewID(), Role: "system", Content: content, GeneratedBy: "system"}
}

func (m *MessageReference) ID() string      { return m.RefID }
func (m *MessageReference) Kind() Kind      { return KindMessage }
func (m *MessageReference) setID(id string) { m.RefID = id }
func (m *MessageReference) String() string {
	return fmt.Sprintf("%s: %s", m.Role, m.Content)
}

// FileReference points at a file. When Content is empty and Path is set the
// content is loaded from disk before embedding.
type FileReference struct {
	RefID     string `json:"id"`
	Filename  string `json:"filename"`
	Path      string `json:"path,omitempty"`
	Content   string `json:"content,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	embeddingHolder
}

func (f *FileReference) ID() string      { return f.RefID }
func (f *FileReference) Kind() Kind      { return KindFile }
func (f *FileReference) setID(id string) { f.RefID = id }

// FileName returns the name used for language detection.
func (f *FileReference) FileName() string {
	if f.Filename != "" {
		return f.Filename
	}
	return filepath.Base(f.Path)
}

// SourcePath returns the on-disk location, if any.
func (f *FileReference) SourcePath() string { return f.Path }

// SetContent stores content loaded from SourcePath.
func (f *FileReference) SetContent(content string) { f.Content = content }

// HasContent reports whether textual content is already present.
func (f *FileReference) HasContent() bool { return f.Content != "" }

func (f *FileReference) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s", f.FileName())
	if f.Content != "" {
		b.WriteString("\n\n")
		b.WriteString(f.Content)
	}
	return b.String()
}

// FileContentReference is generated content held in memory, such as the
// output of a generation backend.
type FileContentReference struct {
	RefID     string `json:"id"`
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	MediaType string `json:"media_type,omitempty"`
	embeddingHolder
}

func (f *FileContentReference) ID() string       { return f.RefID }
func (f *FileContentReference) Kind() Kind       { return KindFileContent }
func (f *FileContentReference) setID(id string)  { f.RefID = id }
func (f *FileContentReference) FileName() string { return f.Filename }
func (f *FileContentReference) String() string {
	return fmt.Sprintf("File: %s\n\n%s", f.Filename, f.Content)
}

// CodeBlock is a snippet of source code with its language.
type CodeBlock struct {
	Language Language `json:"language"`
	Code     string   `json:"code"`
}

// CodeExecution records a code block and the result of running it.
type CodeExecution struct {
	RefID     string    `json:"id"`
	CodeBlock CodeBlock `json:"code_block"`
	Output    string    `json:"code_output,omitempty"`
	ExitCode  int       `json:"exit_code"`
	embeddingHolder
}

func (c *CodeExecution) ID() string             { return c.RefID }
func (c *CodeExecution) Kind() Kind             { return KindCodeExecution }
func (c *CodeExecution) setID(id string)        { c.RefID = id }
func (c *CodeExecution) CodeLanguage() Language { return c.CodeBlock.Language }
func (c *CodeExecution) String() string {
	return fmt.Sprintf("```%s\n%s\n```\nExit code: %d\nOutput:\n%s",
		c.CodeBlock.Language, c.CodeBlock.Code, c.ExitCode, c.Output)
}

// ToolCall is a function invocation requested by a model. It carries no
// embeddings and is ignored by embedding logic.
type ToolCall struct {
	RefID     string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func (t *ToolCall) ID() string      { return t.RefID }
func (t *ToolCall) Kind() Kind      { return KindToolCall }
func (t *ToolCall) setID(id string) { t.RefID = id }
func (t *ToolCall) String() string {
	return fmt.Sprintf("Tool call: %s(%v)", t.Name, t.Arguments)
}
