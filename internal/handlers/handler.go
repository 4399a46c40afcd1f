package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/AnshRaj112/chatooz-backend/internal/flows"
	"github.com/AnshRaj112/chatooz-backend/internal/logging"
	"github.com/AnshRaj112/chatooz-backend/internal/metrics"
	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/AnshRaj112/chatooz-backend/internal/services"
)

// Flows is the set of user flows served over HTTP.
type Flows interface {
	SignUp(ctx context.Context, req flows.SignUpRequest) (*flows.AuthResult, error)
	SignIn(ctx context.Context, email, password string) (*flows.AuthResult, error)
	Resume(ctx context.Context, token string) (*flows.SessionResult, error)
	SignOut(ctx context.Context, token string) models.Route
	CurrentIdentity(ctx context.Context, token string) (string, error)
	VerifyEmail(ctx context.Context, token string) error
	Profile(ctx context.Context, id string) (*models.Profile, error)
	UpdateAvatar(ctx context.Context, id string, image []byte) (*models.Profile, error)
	FindPeer(ctx context.Context, email string) (*flows.PeerResult, error)
	CreateGroup(ctx context.Context, selfID, name, emails string) (*flows.GroupResult, error)
}

// Chat sends and reads conversation messages.
type Chat interface {
	Send(ctx context.Context, from services.Sender, kind models.ConversationType, targetID, text string) (*models.ChatMessage, error)
	History(ctx context.Context, userID string, kind models.ConversationType, targetID string, before *time.Time, limit int64) ([]models.ChatMessage, bool, error)
}

// Gateway authenticates realtime sockets.
type Gateway interface {
	ParseConnectToken(ctx context.Context, token string) (*services.ConnectClaims, error)
	TouchPresence(ctx context.Context, userID string) error
}

// Hub tracks open sockets.
type Hub interface {
	Register(userID string, conn services.ChatConn) *services.UserConnection
	Unregister(uc *services.UserConnection)
}

type Handler struct {
	flows   Flows
	chat    Chat
	gateway Gateway
	hub     Hub
	log     logging.Logger
	metrics *metrics.Metrics

	allowedOrigins []string
}

type Deps struct {
	Flows          Flows
	Chat           Chat
	Gateway        Gateway
	Hub            Hub
	Logger         logging.Logger
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

func New(d Deps) *Handler {
	log := d.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Handler{
		flows:          d.Flows,
		chat:           d.Chat,
		gateway:        d.Gateway,
		hub:            d.Hub,
		log:            log,
		metrics:        d.Metrics,
		allowedOrigins: d.AllowedOrigins,
	}
}

type ctxKey struct{}

// WithUserID stores the authenticated identity id on ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// UserID returns the identity id set by RequireSession.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// RequireSession rejects requests without a valid bearer session token.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"success": false,
				"message": "Not signed in",
			})
			return
		}
		id, err := h.flows.CurrentIdentity(r.Context(), token)
		if err != nil {
			h.writeError(w, r, err, nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

func extractBearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(kind flows.ErrorKind) int {
	switch kind {
	case flows.KindValidation, flows.KindBadFormat, flows.KindWeakPassword:
		return http.StatusBadRequest
	case flows.KindUnauthenticated, flows.KindNoSuchUser, flows.KindWrongPassword:
		return http.StatusUnauthorized
	case flows.KindEmailInUse:
		return http.StatusConflict
	case flows.KindNotFound:
		return http.StatusNotFound
	case flows.KindDirectory, flows.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorBody renders a flow error as the JSON envelope clients display.
func errorBody(err error) (int, map[string]interface{}) {
	body := map[string]interface{}{"success": false}
	kind := flows.KindOf(err)
	body["kind"] = kind.String()

	var verrs flows.ValidationErrors
	var fe *flows.Error
	switch {
	case errors.As(err, &verrs):
		body["message"] = verrs[0].Message
		body["fields"] = verrs.Fields()
	case errors.As(err, &fe):
		body["message"] = fe.Message
		if fe.Field != "" {
			body["fields"] = map[string]string{fe.Field: fe.Message}
		}
		if fe.Kind == flows.KindTransport {
			body["code"] = fe.Code
		}
	default:
		body["message"] = "Something went wrong"
	}
	return statusFor(kind), body
}

// writeError writes err, merging extra keys into the body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, extra map[string]interface{}) {
	status, body := errorBody(err)
	for k, v := range extra {
		body[k] = v
	}
	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(dst)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"message": msg,
	})
}
