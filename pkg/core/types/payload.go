package types

// References is the task-defined payload carried by a node response.
type References struct {
	Messages     []*MessageReference     `json:"messages,omitempty"`
	Files        []*FileReference        `json:"files,omitempty"`
	FileContents []*FileContentReference `json:"file_contents,omitempty"`
	Embeddings   []EmbeddingChunk        `json:"embeddings,omitempty"`
	Cluster      *DataCluster            `json:"data_cluster,omitempty"`
}

// SystemMessage wraps a single system-authored message, the payload used for
// failure responses.
func SystemMessage(content string) References {
	return References{Messages: []*MessageReference{NewSystemMessage(content)}}
}

// IsEmpty reports whether the payload carries nothing.
func (r References) IsEmpty() bool {
	return len(r.Messages) == 0 && len(r.Files) == 0 && len(r.FileContents) == 0 &&
		len(r.Embeddings) == 0 && r.Cluster == nil
}
