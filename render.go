package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/n0madic/go-agentquery/internal/backend"
	"github.com/n0madic/go-agentquery/internal/models"
	"github.com/n0madic/go-agentquery/internal/stream"
	"github.com/n0madic/go-agentquery/internal/types"
)

var (
	thinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	freeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// renderer prints query events to a terminal or as JSON lines.
type renderer struct {
	w       io.Writer
	json    bool
	last    stream.EventType
	enc     *json.Encoder
	written bool
}

func newRenderer(w io.Writer, jsonOut bool) *renderer {
	return &renderer{w: w, json: jsonOut, enc: json.NewEncoder(w)}
}

func (r *renderer) Render(ev stream.Event) {
	if r.json {
		r.enc.Encode(ev) //nolint:errcheck
		return
	}
	switch ev.Type {
	case stream.EventThinking:
		fmt.Fprint(r.w, thinkingStyle.Render(ev.Content))
		r.written = true
	case stream.EventText:
		if r.last == stream.EventThinking {
			fmt.Fprint(r.w, "\n\n")
		}
		fmt.Fprint(r.w, ev.Content)
		r.written = true
	case stream.EventError:
		if r.written {
			fmt.Fprintln(r.w)
			r.written = false
		}
	}
	r.last = ev.Type
}

// Finish terminates the last output line.
func (r *renderer) Finish() {
	if !r.json && r.written {
		fmt.Fprintln(r.w)
	}
}

func printModels(w io.Writer, list []models.Model, active string) {
	for _, m := range list {
		marker := "  "
		id := m.ID
		if m.ID == active {
			marker = activeStyle.Render("* ")
			id = activeStyle.Render(m.ID)
		}
		var tags []string
		if m.Free {
			tags = append(tags, freeStyle.Render("free"))
		}
		if m.InputPrice > 0 || m.OutputPrice > 0 {
			tags = append(tags, mutedStyle.Render(fmt.Sprintf("$%g/$%g per 1M", m.InputPrice, m.OutputPrice)))
		}
		if m.Source != "" {
			tags = append(tags, mutedStyle.Render(m.Source))
		}
		fmt.Fprintf(w, "%s%-36s %s\n", marker, id, strings.Join(tags, " "))
	}
}

func printInfo(w io.Writer, a *app) {
	svc := a.service
	sel := svc.Selection()
	row := func(label, value string) {
		if value == "" {
			value = mutedStyle.Render("(none)")
		}
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label+":")), value)
	}
	backendName := string(sel.Kind)
	if svc.ExecutablePath() != "" && sel.Kind != backend.KindHTTPLocal {
		backendName = "cli, fallback " + backendName
	}

	row("settings", a.store.Path())
	row("executable", svc.ExecutablePath())
	row("model", sel.Model)
	row("provider", sel.Provider)
	row("backend", backendName)
	row("endpoint", sel.Endpoint)
	if svc.HasValidConfig() {
		row("config", activeStyle.Render("valid"))
	} else {
		row("config", errorStyle.Render("no credentials for the selected provider"))
	}
}

// readAttachment loads a file for the query, detecting its MIME type from
// the extension and then the content.
func readAttachment(path string) (types.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Attachment{}, fmt.Errorf("read attachment: %w", err)
	}
	mt := mime.TypeByExtension(filepath.Ext(path))
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return types.Attachment{FileName: filepath.Base(path), MIMEType: mt, Data: data}, nil
}
