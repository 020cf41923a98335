package transform

import (
	"strings"
	"testing"

	"github.com/n0madic/go-agentquery/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		att  types.Attachment
		want AttachmentKind
	}{
		{"saved file wins over image", types.Attachment{MIMEType: "image/png", FilePath: "/vault/a.png"}, KindFileRef},
		{"image", types.Attachment{MIMEType: "image/jpeg"}, KindImage},
		{"text mime", types.Attachment{MIMEType: "text/plain"}, KindText},
		{"json mime", types.Attachment{MIMEType: "application/json"}, KindText},
		{"text by extension", types.Attachment{MIMEType: "application/octet-stream", FileName: "main.PY"}, KindText},
		{"pdf", types.Attachment{MIMEType: "application/pdf"}, KindDocument},
		{"docx by extension", types.Attachment{MIMEType: "application/octet-stream", FileName: "report.docx"}, KindDocument},
		{"binary", types.Attachment{MIMEType: "application/zip", FileName: "x.zip"}, KindBinary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.att); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAttachmentPart(t *testing.T) {
	tests := []struct {
		name  string
		att   types.Attachment
		check func(types.ContentPart) bool
	}{
		{
			name: "file reference stub",
			att:  types.Attachment{FileName: "a.png", FilePath: "attachments/a.png"},
			check: func(p types.ContentPart) bool {
				return p.Type == "text" && strings.Contains(p.Text, "attachments/a.png") && strings.Contains(p.Text, "a.png")
			},
		},
		{
			name: "image as data uri",
			att:  types.Attachment{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
			check: func(p types.ContentPart) bool {
				return p.Type == "image_url" && p.ImageURL != nil && p.ImageURL.URL == "data:image/png;base64,iVBORw=="
			},
		},
		{
			name: "decoded text",
			att:  types.Attachment{MIMEType: "text/markdown", FileName: "notes.md", Data: []byte("# Title")},
			check: func(p types.ContentPart) bool {
				return p.Text == "[File: notes.md]\n\n# Title"
			},
		},
		{
			name: "undecodable text",
			att:  types.Attachment{MIMEType: "text/plain", Data: []byte{0xff, 0xfe, 0xfd}},
			check: func(p types.ContentPart) bool {
				return strings.Contains(p.Text, "attachment") && strings.Contains(p.Text, "could not be decoded")
			},
		},
		{
			name: "document placeholder",
			att:  types.Attachment{MIMEType: "application/pdf", FileName: "paper.pdf", Data: []byte("%PDF")},
			check: func(p types.ContentPart) bool {
				return strings.HasPrefix(p.Text, "[File: paper.pdf (application/pdf)") && !strings.Contains(p.Text, "%PDF")
			},
		},
		{
			name: "binary placeholder",
			att:  types.Attachment{MIMEType: "application/zip", FileName: "x.zip"},
			check: func(p types.ContentPart) bool {
				return p.Text == "[File: x.zip (application/zip) - binary file]"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AttachmentPart(tt.att); !tt.check(got) {
				t.Errorf("unexpected part %+v", got)
			}
		})
	}
}

func TestBuildMessagesOrder(t *testing.T) {
	msgs := BuildMessages("current", types.QueryOptions{
		SystemPrompt: "be brief",
		History: []types.HistoryMessage{
			{Role: "user", Content: "q1"},
			{Role: "assistant", Content: "a1"},
		},
	})
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	for i, m := range msgs {
		if m.Role != wantRoles[i] {
			t.Errorf("msg %d role = %q, want %q", i, m.Role, wantRoles[i])
		}
	}
	if msgs[3].Content != "current" {
		t.Errorf("prompt content = %#v", msgs[3].Content)
	}
}

func TestBuildMessagesInlinesAttachments(t *testing.T) {
	msgs := BuildMessages("describe", types.QueryOptions{
		Attachments: []types.Attachment{{MIMEType: "image/gif", Data: []byte("GIF")}},
	})
	parts, ok := msgs[0].Content.([]types.ContentPart)
	if !ok {
		t.Fatalf("expected content parts, got %T", msgs[0].Content)
	}
	if len(parts) != 2 || parts[0].Type != "image_url" || parts[1].Text != "describe" {
		t.Fatalf("unexpected parts %+v", parts)
	}
}

func TestBuildMessagesSavedAttachmentKeepsPlainPrompt(t *testing.T) {
	msgs := BuildMessages("see attachments/a.png", types.QueryOptions{
		Attachments: []types.Attachment{
			{MIMEType: "image/png", FilePath: "attachments/a.png"},
			{MIMEType: "image/png", Data: []byte("x")},
		},
	})
	if msgs[0].Content != "see attachments/a.png" {
		t.Fatalf("expected plain prompt, got %#v", msgs[0].Content)
	}
}

func TestBuildMessagesHistoryAttachmentsDropEmptyText(t *testing.T) {
	msgs := BuildMessages("next", types.QueryOptions{
		History: []types.HistoryMessage{
			{Content: "  ", Attachments: []types.Attachment{{MIMEType: "text/plain", FileName: "a.txt", Data: []byte("hi")}}},
		},
	})
	parts, ok := msgs[0].Content.([]types.ContentPart)
	if !ok || len(parts) != 1 {
		t.Fatalf("expected a single attachment part, got %#v", msgs[0].Content)
	}
	if msgs[0].Role != "user" {
		t.Errorf("empty role should default to user, got %q", msgs[0].Role)
	}
	if got := types.TextOf(parts); got != "[File: a.txt]\n\nhi" {
		t.Errorf("TextOf = %q", got)
	}
}
