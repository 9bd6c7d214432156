package types

import "fmt"

// Collection names, in enumeration order.
const (
	CollectionMessages       = "messages"
	CollectionFiles          = "files"
	CollectionFileContents   = "file_contents"
	CollectionCodeExecutions = "code_executions"
	CollectionToolCalls      = "tool_calls"
	// CollectionEmbeddings holds free-standing chunks and is never processed
	// by embedding logic.
	CollectionEmbeddings = "embeddings"
)

// DataCluster is the container of all typed reference collections processed
// by a task. It is not safe for concurrent mutation.
type DataCluster struct {
	Name           string                  `json:"name,omitempty"`
	Messages       []*MessageReference     `json:"messages,omitempty"`
	Files          []*FileReference        `json:"files,omitempty"`
	FileContents   []*FileContentReference `json:"file_contents,omitempty"`
	CodeExecutions []*CodeExecution        `json:"code_executions,omitempty"`
	ToolCalls      []*ToolCall             `json:"tool_calls,omitempty"`
	Embeddings     EmbeddingList           `json:"embeddings,omitempty"`
}

// Collection is a read view of one typed collection.
type Collection struct {
	Name  string
	Items []Reference
}

// Collections returns every reference collection in enumeration order. The
// embedding-only collection is not included.
func (c *DataCluster) Collections() []Collection {
	return []Collection{
		{Name: CollectionMessages, Items: asReferences(c.Messages)},
		{Name: CollectionFiles, Items: asReferences(c.Files)},
		{Name: CollectionFileContents, Items: asReferences(c.FileContents)},
		{Name: CollectionCodeExecutions, Items: asReferences(c.CodeExecutions)},
		{Name: CollectionToolCalls, Items: asReferences(c.ToolCalls)},
	}
}

// SetCollection replaces the named collection. Every item must be of the
// collection's concrete type.
func (c *DataCluster) SetCollection(name string, items []Reference) error {
	var err error
	switch name {
	case CollectionMessages:
		c.Messages, err = fromReferences[*MessageReference](name, items)
	case CollectionFiles:
		c.Files, err = fromReferences[*FileReference](name, items)
	case CollectionFileContents:
		c.FileContents, err = fromReferences[*FileContentReference](name, items)
	case CollectionCodeExecutions:
		c.CodeExecutions, err = fromReferences[*CodeExecution](name, items)
	case CollectionToolCalls:
		c.ToolCalls, err = fromReferences[*ToolCall](name, items)
	default:
		return fmt.Errorf("unknown collection %q", name)
	}
	return err
}

// AssignIDs gives every reference without an identifier a fresh one.
func (c *DataCluster) AssignIDs() {
	for _, col := range c.Collections() {
		for _, ref := range col.Items {
			if ref.ID() != "" {
				continue
			}
			if s, ok := ref.(identified); ok {
				s.setID(NewID())
			}
		}
	}
}

// Lookup finds a reference by id across all collections.
func (c *DataCluster) Lookup(id string) (Reference, bool) {
	for _, col := range c.Collections() {
		for _, ref := range col.Items {
			if ref.ID() == id {
				return ref, true
			}
		}
	}
	return nil, false
}

// Stats summarizes a cluster for logs and API responses.
type Stats struct {
	References int `json:"references"`
	Embeddable int `json:"embeddable"`
	Embedded   int `json:"embedded"`
	Chunks     int `json:"chunks"`
}

func (c *DataCluster) Stats() Stats {
	var s Stats
	for _, col := range c.Collections() {
		for _, ref := range col.Items {
			s.References++
			e, ok := ref.(Embeddable)
			if !ok {
				continue
			}
			s.Embeddable++
			if n := len(e.Embeddings()); n > 0 {
				s.Embedded++
				s.Chunks += n
			}
		}
	}
	return s
}

func asReferences[T Reference](items []T) []Reference {
	if len(items) == 0 {
		return nil
	}
	out := make([]Reference, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

func fromReferences[T Reference](collection string, items []Reference) ([]T, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		v, ok := it.(T)
		if !ok {
			return nil, fmt.Errorf("collection %q: unexpected reference kind %q", collection, it.Kind())
		}
		out = append(out, v)
	}
	return out, nil
}
