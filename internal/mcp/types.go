package mcp

// ContextChunk is one retrieved piece of context.
type ContextChunk struct {
	Text       string  `json:"text" jsonschema:"The chunk text"`
	Index      int     `json:"index" jsonschema:"Position of the chunk inside its source item"`
	Similarity float64 `json:"similarity" jsonschema:"Cosine similarity to the prompt"`
}

type RetrieveContextResult struct {
	TaskID string         `json:"task_id"`
	Chunks []ContextChunk `json:"chunks"`
}

type SpeechResult struct {
	TaskID string   `json:"task_id"`
	Files  []string `json:"files" jsonschema:"Paths of the generated audio files"`
}

type AddReferenceArgs struct {
	Kind     string `json:"kind" jsonschema:"What to add: message or file"`
	Content  string `json:"content,omitempty" jsonschema:"Message text or file content"`
	Role     string `json:"role,omitempty" jsonschema:"Message author role. Defaults to user"`
	Filename string `json:"filename,omitempty" jsonschema:"File name, used to detect the language"`
	Path     string `json:"path,omitempty" jsonschema:"File path on the server, read when content is empty"`
}

type AddReferenceResult struct {
	ID         string `json:"id"`
	References int    `json:"references" jsonschema:"Items in the data cluster after the addition"`
}
