package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/AnshRaj112/chatooz-backend/internal/flows"
)

// MaxAvatarBytes caps uploaded profile images.
const MaxAvatarBytes = 5 << 20

var errAvatarTooLarge = errors.New("avatar too large")

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpJSON struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignUp accepts either a multipart form (email, username, password and an
// optional avatar file) or a JSON body without an avatar.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req flows.SignUpRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(MaxAvatarBytes + 1<<20); err != nil {
			badRequest(w, "Invalid form data")
			return
		}
		req.Email = r.FormValue("email")
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
		avatar, err := readAvatar(r)
		if err != nil {
			if errors.Is(err, errAvatarTooLarge) {
				badRequest(w, "Image is too large")
				return
			}
			badRequest(w, "Could not read image")
			return
		}
		req.Avatar = avatar
	} else {
		var body signUpJSON
		if err := decodeJSON(w, r, &body); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
		req.Email, req.Username, req.Password = body.Email, body.Username, body.Password
	}

	result, err := h.flows.SignUp(r.Context(), req)
	h.writeAuth(w, r, http.StatusCreated, result, err)
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	result, err := h.flows.SignIn(r.Context(), req.Email, req.Password)
	h.writeAuth(w, r, http.StatusOK, result, err)
}

// writeAuth renders a sign-up or sign-in outcome. A chat connection failure
// still hands out the session token so the client stays signed in.
func (h *Handler) writeAuth(w http.ResponseWriter, r *http.Request, status int, result *flows.AuthResult, err error) {
	if err != nil {
		var extra map[string]interface{}
		if result != nil {
			extra = map[string]interface{}{
				"user":          result.Identity,
				"session_token": result.SessionToken,
			}
		}
		h.writeError(w, r, err, extra)
		return
	}
	body := map[string]interface{}{
		"success":       true,
		"user":          result.Identity,
		"session_token": result.SessionToken,
		"session":       result.Session,
	}
	if result.Session != nil {
		body["route"] = result.Session.Route
	}
	writeJSON(w, status, body)
}

// Session is called on app launch to resume a stored session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	result, err := h.flows.Resume(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"session": result,
		"route":   result.Route,
	})
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	route := h.flows.SignOut(r.Context(), token)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Signed out",
		"route":   route,
	})
}

// VerifyEmail consumes the token from an emailed verification link.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		badRequest(w, "Missing verification token")
		return
	}
	if err := h.flows.VerifyEmail(r.Context(), token); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Email verified",
	})
}

// readAvatar returns the "avatar" form file, or nil when none was sent.
func readAvatar(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("avatar")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readLimited(file)
}

func readLimited(file multipart.File) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, MaxAvatarBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxAvatarBytes {
		return nil, errAvatarTooLarge
	}
	return data, nil
}
