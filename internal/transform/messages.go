// Package transform assembles chat-completions request envelopes.
package transform

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/n0madic/go-agentquery/internal/types"
)

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".json": true, ".js": true, ".ts": true, ".jsx": true,
	".tsx": true, ".py": true, ".java": true, ".c": true, ".cpp": true, ".h": true,
	".cs": true, ".html": true, ".css": true, ".xml": true, ".yaml": true, ".yml": true,
	".sql": true, ".sh": true, ".bash": true, ".go": true,
}

var documentExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true,
}

// AttachmentKind is how an attachment is rendered into a message.
type AttachmentKind int

const (
	KindFileRef AttachmentKind = iota
	KindImage
	KindText
	KindDocument
	KindBinary
)

// Classify picks the rendering of a by priority: saved file path, image,
// text-like, document, other binary.
func Classify(a types.Attachment) AttachmentKind {
	mime := strings.ToLower(a.MIMEType)
	ext := strings.ToLower(filepath.Ext(a.FileName))
	switch {
	case a.FilePath != "":
		return KindFileRef
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.Contains(mime, "text/"),
		strings.Contains(mime, "application/json"),
		strings.Contains(mime, "application/javascript"),
		strings.Contains(mime, "application/xml"),
		textExtensions[ext]:
		return KindText
	case strings.Contains(mime, "application/pdf"), documentExtensions[ext]:
		return KindDocument
	}
	return KindBinary
}

func displayName(a types.Attachment, fallback string) string {
	if a.FileName != "" {
		return a.FileName
	}
	return fallback
}

// AttachmentPart renders one attachment as a content part.
func AttachmentPart(a types.Attachment) types.ContentPart {
	switch Classify(a) {
	case KindFileRef:
		return types.ContentPart{Type: "text", Text: fmt.Sprintf("[Attachment: %s - saved at %s]", displayName(a, "file"), a.FilePath)}
	case KindImage:
		uri := "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
		return types.ContentPart{Type: "image_url", ImageURL: &types.ImageURL{URL: uri}}
	case KindText:
		name := displayName(a, "attachment")
		if !utf8.Valid(a.Data) {
			return types.ContentPart{Type: "text", Text: fmt.Sprintf("[File: %s (text file, could not be decoded)]", name)}
		}
		return types.ContentPart{Type: "text", Text: fmt.Sprintf("[File: %s]\n\n%s", name, a.Data)}
	case KindDocument:
		return types.ContentPart{Type: "text", Text: fmt.Sprintf("[File: %s (%s) - text extraction is not supported for this format]", displayName(a, "attachment"), a.MIMEType)}
	}
	return types.ContentPart{Type: "text", Text: fmt.Sprintf("[File: %s (%s) - binary file]", displayName(a, "attachment"), a.MIMEType)}
}

// contentWithAttachments returns text unchanged when there is nothing to
// inline. When any attachment was saved to disk the caller already put its
// path into the text, so the text is used as is as well.
func contentWithAttachments(text string, atts []types.Attachment, keepEmptyText bool) any {
	if len(atts) == 0 {
		return text
	}
	for _, a := range atts {
		if a.FilePath != "" {
			return text
		}
	}
	parts := make([]types.ContentPart, 0, len(atts)+1)
	for _, a := range atts {
		parts = append(parts, AttachmentPart(a))
	}
	if keepEmptyText || strings.TrimSpace(text) != "" {
		parts = append(parts, types.ContentPart{Type: "text", Text: text})
	}
	return parts
}

// BuildMessages assembles the ordered message list: system prompt, history,
// then the current prompt with its attachments.
func BuildMessages(prompt string, opts types.QueryOptions) []types.ChatMessage {
	var msgs []types.ChatMessage
	if opts.SystemPrompt != "" {
		msgs = append(msgs, types.ChatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	for _, h := range opts.History {
		role := h.Role
		if role == "" {
			role = "user"
		}
		msgs = append(msgs, types.ChatMessage{Role: role, Content: contentWithAttachments(h.Content, h.Attachments, false)})
	}
	return append(msgs, types.ChatMessage{Role: "user", Content: contentWithAttachments(prompt, opts.Attachments, true)})
}
