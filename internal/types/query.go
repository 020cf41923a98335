package types

// Attachment is a file attached to a prompt. Data holds the raw bytes;
// FilePath is set when the file was already saved where the backend can
// read it.
type Attachment struct {
	FileName string `json:"file_name,omitempty"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// HistoryMessage is one earlier turn of the conversation.
type HistoryMessage struct {
	Role        string       `json:"role"` // user, assistant, system
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// QueryOptions are the per-call knobs of a query. Zero values mean "use the
// configured default".
type QueryOptions struct {
	Model        string           `json:"model,omitempty"`
	Temperature  *float64         `json:"temperature,omitempty"`
	MaxTokens    int              `json:"max_tokens,omitempty"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	History      []HistoryMessage `json:"history,omitempty"`
	Attachments  []Attachment     `json:"attachments,omitempty"`
	Thinking     bool             `json:"thinking,omitempty"`
	Tools        []string         `json:"tools,omitempty"`
	NoStream     bool             `json:"no_stream,omitempty"`
}
