package handlers

import (
	"net/http"

	"github.com/AnshRaj112/chatooz-backend/internal/flows"
)

type FindPeerRequest struct {
	Email string `json:"email"`
}

// CreateGroupRequest carries member emails as the comma-separated list typed
// by the user.
type CreateGroupRequest struct {
	Name   string `json:"name"`
	Emails string `json:"emails"`
}

func (h *Handler) FindPeer(w http.ResponseWriter, r *http.Request) {
	var req FindPeerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	result, err := h.flows.FindPeer(r.Context(), req.Email)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"peer_id": result.PeerID,
		"route":   result.Route,
	})
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	result, err := h.flows.CreateGroup(r.Context(), UserID(r.Context()), req.Name, req.Emails)
	if err != nil {
		var extra map[string]interface{}
		if result != nil && len(result.Notices) > 0 {
			extra = map[string]interface{}{"notices": result.Notices}
		}
		h.writeError(w, r, err, extra)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": result.Message,
		"group":   result.Group,
		"route":   result.Route,
		"notices": noticesOrEmpty(result.Notices),
	})
}

func noticesOrEmpty(n []flows.Notice) []flows.Notice {
	if n == nil {
		return []flows.Notice{}
	}
	return n
}
