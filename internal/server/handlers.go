package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/n0madic/go-agentquery/internal/agent"
	"github.com/n0madic/go-agentquery/internal/codec"
	"github.com/n0madic/go-agentquery/internal/orchestrator"
	"github.com/n0madic/go-agentquery/internal/sse"
	"github.com/n0madic/go-agentquery/internal/stream"
	"github.com/n0madic/go-agentquery/internal/types"
)

// statusClientClosedRequest reports a query stopped before it completed.
const statusClientClosedRequest = 499

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		codec.WriteOpenAIError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	prompt, opts, err := toQuery(req)
	if err != nil {
		codec.WriteOpenAIError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.Agent.IsReady() {
		codec.WriteOpenAIError(w, http.StatusServiceUnavailable, agent.ErrNotInitialized.Error())
		return
	}

	model := opts.Model
	if model == "" {
		model = s.Agent.ActiveModel()
	}
	if s.Config.Verbose {
		s.Logger.Info("openai.chat.request",
			zap.String("model", model),
			zap.Bool("stream", req.Stream),
			zap.Int("history", len(opts.History)),
			zap.Int("attachments", len(opts.Attachments)),
			zap.Bool("thinking", opts.Thinking),
		)
	}

	created := time.Now().Unix()
	events := s.Agent.Query(r.Context(), prompt, opts)
	if req.Stream {
		s.streamChat(w, events, model, created)
		return
	}
	s.collectChat(w, events, model, created)
}

func (s *Server) streamChat(w http.ResponseWriter, events <-chan stream.Event, model string, created int64) {
	cw, err := sse.NewChatWriter(w, model, created)
	if err != nil {
		for range events {
		}
		codec.WriteOpenAIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for ev := range events {
		cw.WriteEvent(ev)
	}
}

func (s *Server) collectChat(w http.ResponseWriter, events <-chan stream.Event, model string, created int64) {
	var text, thinking strings.Builder
	var failure string
	for ev := range events {
		switch ev.Type {
		case stream.EventText:
			text.WriteString(ev.Content)
		case stream.EventThinking:
			thinking.WriteString(ev.Content)
		case stream.EventError:
			failure = ev.Error
		}
	}
	if failure != "" {
		codec.WriteOpenAIError(w, errorStatus(failure), failure)
		return
	}

	stop := "stop"
	codec.WriteJSON(w, http.StatusOK, types.ChatCompletionResponse{
		ID:      sse.NewCompletionID(),
		Object:  "chat.completion",
		Created: created,
		Model:   model,
		Choices: []types.ChatChoice{{
			Index: 0,
			Message: types.ChatResponseMsg{
				Role:             "assistant",
				Content:          text.String(),
				ReasoningContent: thinking.String(),
			},
			FinishReason: &stop,
		}},
	})
}

// errorStatus maps a terminal error message to an HTTP status.
func errorStatus(msg string) int {
	switch msg {
	case orchestrator.ErrCancelled.Error():
		return statusClientClosedRequest
	case agent.ErrNotInitialized.Error(), orchestrator.ErrBackendUnavailable.Error():
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	list := s.Agent.AvailableModels(r.Context())
	data := make([]types.ModelObject, 0, len(list))
	for _, m := range list {
		owner := m.Provider
		if owner == "" {
			owner = "unknown"
		}
		data = append(data, types.ModelObject{ID: m.ID, Object: "model", OwnedBy: owner})
	}
	codec.WriteJSON(w, http.StatusOK, types.ModelList{Object: "list", Data: data})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.Agent.Stop()
	codec.WriteJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

type modelInfo struct {
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	codec.WriteJSON(w, http.StatusOK, modelInfo{Model: s.Agent.ActiveModel(), Provider: s.Agent.ActiveProvider()})
}

func (s *Server) handleSwitchModel(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(body, &req); err != nil || strings.TrimSpace(req.Model) == "" {
		codec.WriteOpenAIError(w, http.StatusBadRequest, "model is required")
		return
	}
	if err := s.Agent.SwitchModel(req.Model); err != nil {
		s.Logger.Error("server.switch_model", zap.Error(err))
		codec.WriteOpenAIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	codec.WriteJSON(w, http.StatusOK, modelInfo{Model: s.Agent.ActiveModel(), Provider: s.Agent.ActiveProvider()})
}
