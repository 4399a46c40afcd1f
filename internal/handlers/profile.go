package handlers

import (
	"errors"
	"net/http"
)

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.flows.Profile(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"profile": profile,
	})
}

// UpdateAvatar replaces the caller's profile image with the "avatar" form file.
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxAvatarBytes + 1<<20); err != nil {
		badRequest(w, "Invalid form data")
		return
	}
	image, err := readAvatar(r)
	if err != nil {
		if errors.Is(err, errAvatarTooLarge) {
			badRequest(w, "Image is too large")
			return
		}
		badRequest(w, "Could not read image")
		return
	}

	profile, err := h.flows.UpdateAvatar(r.Context(), UserID(r.Context()), image)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Profile image updated",
		"profile": profile,
	})
}
