package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AnshRaj112/chatooz-backend/internal/logging"
	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/AnshRaj112/chatooz-backend/internal/services"
	"github.com/AnshRaj112/chatooz-backend/pkg/utils"
)

const verificationTimeout = 10 * time.Second

// AuthResult is returned by SignUp and SignIn. Session is nil when the chat
// connection failed; the identity is still signed in in that case.
type AuthResult struct {
	Identity     *models.Identity `json:"user"`
	SessionToken string           `json:"session_token"`
	Session      *SessionResult   `json:"session,omitempty"`
}

type SignUpRequest struct {
	Email    string
	Username string
	Password string
	Avatar   []byte
}

// SignUp registers a new identity, stores its profile and connects it to chat.
func (o *Orchestrator) SignUp(ctx context.Context, req SignUpRequest) (*AuthResult, error) {
	email := strings.TrimSpace(req.Email)
	username := strings.TrimSpace(req.Username)
	log := o.log.With("flow", "signup", "email", email)

	if errs := validateSignUp(email, username, req.Password); len(errs) > 0 {
		o.metrics.Flow("signup", "invalid")
		return nil, errs
	}

	identity, err := o.creds.Register(ctx, email, req.Password)
	if err != nil {
		fe := signUpError(err)
		log.Warn(ctx, "registration rejected", "kind", fe.Kind.String(), "error", err)
		o.metrics.Flow("signup", fe.Kind.String())
		return nil, fe
	}
	log = log.With("user_id", identity.ID)
	log.Info(ctx, "identity registered")

	if err := o.creds.SetDisplayName(ctx, identity.ID, username); err != nil {
		log.Warn(ctx, "could not set display name on identity", "error", err)
	} else {
		identity.DisplayName = username
	}

	avatar := o.uploadAvatar(ctx, log, identity.ID, req.Avatar)

	profile := &models.Profile{
		ID:          identity.ID,
		DisplayName: username,
		Email:       identity.Email,
		AvatarURL:   avatar,
		CreatedAt:   o.now().UTC(),
	}
	if err := o.profiles.Put(ctx, profile); err != nil {
		log.Error(ctx, "profile write failed", "error", err)
		o.metrics.Flow("signup", "directory_error")
		return nil, &Error{Kind: KindDirectory, Message: "Failed to save user data", Err: err}
	}
	log.Info(ctx, "profile stored", "avatar_url", avatar)

	o.sendVerification(ctx, identity)

	return o.startSession(ctx, "signup", identity, username)
}

func validateSignUp(email, username, password string) ValidationErrors {
	var errs ValidationErrors
	for _, err := range []error{
		utils.ValidateEmail(email),
		utils.ValidateUsername(username),
		utils.ValidateNewPassword(password),
	} {
		var ve *utils.ValidationError
		if errors.As(err, &ve) {
			errs = append(errs, validation(ve.Field, ve.Message))
		}
	}
	return errs
}

// uploadAvatar stores image and returns its URL. The upload runs on its own
// goroutine so that cancelling ctx releases the flow immediately. Any failure
// yields the default avatar.
func (o *Orchestrator) uploadAvatar(ctx context.Context, log logging.Logger, userID string, image []byte) string {
	if len(image) == 0 || o.media == nil {
		log.Info(ctx, "no avatar uploaded, using default")
		return o.defaultAvatar
	}

	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		url, err := o.media.Upload(ctx, image, services.AvatarPath(userID))
		done <- result{url: url, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil || r.url == "" {
			log.Warn(ctx, "avatar upload failed, using default", "error", r.err)
			return o.defaultAvatar
		}
		return r.url
	case <-ctx.Done():
		log.Warn(ctx, "avatar upload cancelled, using default", "error", ctx.Err())
		return o.defaultAvatar
	}
}

func (o *Orchestrator) sendVerification(ctx context.Context, identity *models.Identity) {
	if o.verifier == nil {
		return
	}
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), verificationTimeout)
		defer cancel()
		if err := o.verifier.Send(vctx, identity); err != nil {
			o.log.Warn(vctx, "verification email failed", "user_id", identity.ID, "error", err)
		}
	}()
}

// SignIn authenticates an email/password pair and connects the identity to chat.
func (o *Orchestrator) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	log := o.log.With("flow", "signin", "email", email)

	var errs ValidationErrors
	for _, err := range []error{utils.ValidateEmail(email), utils.ValidateLoginPassword(password)} {
		var ve *utils.ValidationError
		if errors.As(err, &ve) {
			errs = append(errs, validation(ve.Field, ve.Message))
		}
	}
	if len(errs) > 0 {
		o.metrics.Flow("signin", "invalid")
		return nil, errs
	}

	identity, err := o.creds.Authenticate(ctx, email, password)
	if err != nil {
		fe := signInError(err)
		log.Warn(ctx, "sign in rejected", "kind", fe.Kind.String(), "error", err)
		o.metrics.Flow("signin", fe.Kind.String())
		return nil, fe
	}
	log.Info(ctx, "signed in", "user_id", identity.ID)

	return o.startSession(ctx, "signin", identity, identity.DisplayName)
}

// startSession issues the client token and establishes the chat session. On a
// transport failure the result is still returned alongside the error.
func (o *Orchestrator) startSession(ctx context.Context, flow string, identity *models.Identity, name string) (*AuthResult, error) {
	token, err := o.sessions.Create(ctx, identity.ID)
	if err != nil {
		o.log.Error(ctx, "session create failed", "flow", flow, "user_id", identity.ID, "error", err)
		o.metrics.Flow(flow, "session_error")
		return nil, &Error{Kind: KindOther, Message: "Could not start session", Err: err}
	}

	result := &AuthResult{Identity: identity, SessionToken: token}
	session, err := o.EstablishSession(ctx, identity.ID, name)
	if err != nil {
		o.metrics.Flow(flow, "transport_error")
		return result, err
	}
	result.Session = session
	o.metrics.Flow(flow, "ok")
	return result, nil
}

// CurrentIdentity resolves a session token to an identity id.
func (o *Orchestrator) CurrentIdentity(ctx context.Context, token string) (string, error) {
	id, ok, err := o.sessions.Validate(ctx, token)
	if err != nil {
		return "", &Error{Kind: KindOther, Message: "Could not check session", Err: err}
	}
	if !ok {
		return "", &Error{Kind: KindUnauthenticated, Message: "Not signed in"}
	}
	return id, nil
}

// Resume is the app-launch check: without a valid session the client is routed
// to login, otherwise the chat session is re-established.
func (o *Orchestrator) Resume(ctx context.Context, token string) (*SessionResult, error) {
	id, ok, err := o.sessions.Validate(ctx, token)
	if err != nil {
		o.log.Warn(ctx, "session check failed", "error", err)
	}
	if err != nil || !ok {
		return &SessionResult{Route: models.Route{Screen: models.ScreenLogin, ClearHistory: true}}, nil
	}

	name := FallbackDisplayName
	if identity, err := o.creds.Get(ctx, id); err != nil {
		o.log.Warn(ctx, "identity read failed on resume", "user_id", id, "error", err)
	} else if identity.DisplayName != "" {
		name = identity.DisplayName
	}
	return o.EstablishSession(ctx, id, name)
}

// SignOut ends the session and disconnects from chat. It always routes to login.
func (o *Orchestrator) SignOut(ctx context.Context, token string) models.Route {
	id, ok, err := o.sessions.Validate(ctx, token)
	if err != nil {
		o.log.Warn(ctx, "session check failed on sign out", "error", err)
	}
	if err := o.sessions.Invalidate(ctx, token); err != nil {
		o.log.Warn(ctx, "session invalidate failed", "error", err)
	}
	if ok {
		if err := o.transport.Disconnect(ctx, id); err != nil {
			o.log.Warn(ctx, "chat disconnect failed", "user_id", id, "error", err)
		}
		o.log.Info(ctx, "signed out", "user_id", id)
	}
	o.metrics.Flow("signout", "ok")
	return models.Route{Screen: models.ScreenLogin, ClearHistory: true}
}

// VerifyEmail consumes an email verification token.
func (o *Orchestrator) VerifyEmail(ctx context.Context, token string) error {
	if o.verifier == nil {
		return &Error{Kind: KindNotFound, Message: "Email verification is not enabled"}
	}
	id, err := o.verifier.Confirm(ctx, token)
	if err != nil {
		if errors.Is(err, services.ErrVerificationToken) {
			return &Error{Kind: KindValidation, Field: "token", Message: "Verification link is invalid or has expired", Err: err}
		}
		return &Error{Kind: KindOther, Message: "Could not verify email", Err: err}
	}
	o.log.Info(ctx, "email verified", "user_id", id)
	return nil
}
