package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/AnshRaj112/chatooz-backend/internal/services"
)

func signUpReq() SignUpRequest {
	return SignUpRequest{Email: "alice@example.com", Username: "alice_1", Password: "secret1"}
}

func TestSignUp_ValidationCollectsAllFields(t *testing.T) {
	h := newHarness()

	_, err := h.o.SignUp(context.Background(), SignUpRequest{Email: "bad", Username: "a!", Password: "123"})
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, map[string]string{
		"email":    "Enter a valid email",
		"username": "Username must be at least 3 characters",
		"password": "Password must be at least 6 characters",
	}, verrs.Fields())
	assert.Empty(t, h.creds.identities)
}

func TestSignUp_NoAvatarUsesDefault(t *testing.T) {
	h := newHarness()

	res, err := h.o.SignUp(context.Background(), signUpReq())
	require.NoError(t, err)
	h.o.Wait()

	require.Len(t, h.profiles.puts, 1)
	p := h.profiles.puts[0]
	assert.Equal(t, res.Identity.ID, p.ID)
	assert.Equal(t, "alice_1", p.DisplayName)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, defaultAvatar, p.AvatarURL)
	assert.False(t, p.CreatedAt.IsZero())

	assert.Equal(t, "alice_1", res.Identity.DisplayName)
	assert.NotEmpty(t, res.SessionToken)
	require.NotNil(t, res.Session)
	assert.Equal(t, models.ScreenConversations, res.Session.Route.Screen)
	assert.Equal(t, []string{res.Identity.ID}, h.verifier.sent)
	assert.Empty(t, h.media.gotPaths)
}

func TestSignUp_UploadsAvatar(t *testing.T) {
	h := newHarness()
	req := signUpReq()
	req.Avatar = []byte{0x89, 'P', 'N', 'G'}

	res, err := h.o.SignUp(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"profile_images/" + res.Identity.ID}, h.media.gotPaths)
	assert.Equal(t, h.media.url, h.profiles.puts[0].AvatarURL)
	assert.Equal(t, h.media.url, res.Session.AvatarURL)
}

func TestSignUp_UploadFailureUsesDefault(t *testing.T) {
	h := newHarness()
	h.media.err = errors.New("cloudinary 500")
	req := signUpReq()
	req.Avatar = []byte{1}

	_, err := h.o.SignUp(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, defaultAvatar, h.profiles.puts[0].AvatarURL)
}

func TestSignUp_UploadCancelled(t *testing.T) {
	h := newHarness()
	h.media.block = true
	req := signUpReq()
	req.Avatar = []byte{1}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _ = h.o.SignUp(ctx, req)
	require.Len(t, h.profiles.puts, 1)
	assert.Equal(t, defaultAvatar, h.profiles.puts[0].AvatarURL)
}

func TestSignUp_CredentialErrors(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
		msg  string
	}{
		{services.ErrEmailInUse, KindEmailInUse, "Email already registered"},
		{services.ErrBadEmail, KindBadFormat, "Invalid email format"},
		{services.ErrWeakPassword, KindWeakPassword, "Password must be at least 6 characters"},
		{errors.New("network"), KindOther, "Sign up failed: network"},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			h := newHarness()
			h.creds.registerErr = tc.err

			_, err := h.o.SignUp(context.Background(), signUpReq())
			var fe *Error
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tc.kind, fe.Kind)
			assert.Equal(t, tc.msg, fe.Message)
			assert.Empty(t, h.profiles.puts)
		})
	}
}

func TestSignUp_ProfileWriteFailureIsTerminal(t *testing.T) {
	h := newHarness()
	h.profiles.putErr = errors.New("write failed")

	res, err := h.o.SignUp(context.Background(), signUpReq())
	assert.Nil(t, res)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindDirectory, fe.Kind)
	assert.Equal(t, "Failed to save user data", fe.Message)
	assert.Empty(t, h.transport.connected)
	assert.Len(t, h.creds.identities, 1)
}

func TestSignIn(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newHarness(models.Profile{ID: "id-a@x.com", DisplayName: "alice"})
		h.creds.identities["id-a@x.com"] = &models.Identity{ID: "id-a@x.com", Email: "a@x.com"}

		res, err := h.o.SignIn(context.Background(), " a@x.com ", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "tok-id-a@x.com", res.SessionToken)
		assert.Equal(t, "alice", res.Session.DisplayName)
	})

	t.Run("no such user", func(t *testing.T) {
		h := newHarness()

		_, err := h.o.SignIn(context.Background(), "ghost@x.com", "secret1")
		var fe *Error
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, KindNoSuchUser, fe.Kind)
		assert.Equal(t, "No account found with this email", fe.Message)
	})

	t.Run("wrong password", func(t *testing.T) {
		h := newHarness()
		h.creds.authErr = services.ErrWrongPassword

		_, err := h.o.SignIn(context.Background(), "a@x.com", "nope")
		assert.Equal(t, KindWrongPassword, KindOf(err))
		assert.EqualError(t, err, "Incorrect password")
	})

	t.Run("other", func(t *testing.T) {
		h := newHarness()
		h.creds.authErr = errors.New("timeout")

		_, err := h.o.SignIn(context.Background(), "a@x.com", "secret1")
		assert.EqualError(t, err, "Login failed: timeout")
	})

	t.Run("empty password", func(t *testing.T) {
		h := newHarness()

		_, err := h.o.SignIn(context.Background(), "a@x.com", "")
		var verrs ValidationErrors
		require.True(t, errors.As(err, &verrs))
		assert.Equal(t, "Password cannot be empty", verrs.Fields()["password"])
	})

	t.Run("transport failure keeps session token", func(t *testing.T) {
		h := newHarness()
		h.creds.identities["id-a@x.com"] = &models.Identity{ID: "id-a@x.com", Email: "a@x.com"}
		h.transport.connectErr = &services.TransportError{Code: 7, Message: "down"}

		res, err := h.o.SignIn(context.Background(), "a@x.com", "secret1")
		assert.Equal(t, KindTransport, KindOf(err))
		require.NotNil(t, res)
		assert.NotEmpty(t, res.SessionToken)
		assert.Nil(t, res.Session)
	})
}

func TestResume(t *testing.T) {
	h := newHarness()
	h.creds.identities["u1"] = &models.Identity{ID: "u1", DisplayName: "carol"}
	token, _ := h.sessions.Create(context.Background(), "u1")

	res, err := h.o.Resume(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, models.Route{Screen: models.ScreenLogin, ClearHistory: true}, res.Route)

	res, err = h.o.Resume(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.ScreenConversations, res.Route.Screen)
	assert.Equal(t, "carol", res.DisplayName)
}

func TestSignOut(t *testing.T) {
	h := newHarness()
	token, _ := h.sessions.Create(context.Background(), "u1")

	route := h.o.SignOut(context.Background(), token)
	assert.Equal(t, models.Route{Screen: models.ScreenLogin, ClearHistory: true}, route)
	assert.Equal(t, []string{"u1"}, h.transport.disconnected)

	_, err := h.o.CurrentIdentity(context.Background(), token)
	assert.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestVerifyEmail(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.o.VerifyEmail(context.Background(), "good"))
	assert.Equal(t, KindValidation, KindOf(h.o.VerifyEmail(context.Background(), "bad")))
}
