package server

import (
	"net/http"

	"github.com/n0madic/go-agentquery/internal/codec"
)

type healthResponse struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Ready: s.Agent.IsReady()}
	if resp.Ready {
		resp.Model = s.Agent.ActiveModel()
		resp.Provider = s.Agent.ActiveProvider()
	}
	codec.WriteJSON(w, http.StatusOK, resp)
}
