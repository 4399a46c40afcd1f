package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
)

func TestFindPeer(t *testing.T) {
	h := newHarness(models.Profile{ID: "u2", Email: "bob@x.com"})

	res, err := h.o.FindPeer(context.Background(), "  Bob@x.com ")
	require.NoError(t, err)
	assert.Equal(t, "u2", res.PeerID)
	assert.Equal(t, models.Route{Screen: models.ScreenMessage, TargetID: "u2", ConversationType: models.ConversationPeer}, res.Route)
}

func TestFindPeer_InvalidEmailSkipsDirectory(t *testing.T) {
	h := newHarness()
	called := false
	h.profiles.onFind = func(string) error { called = true; return nil }

	_, err := h.o.FindPeer(context.Background(), "bob@")
	assert.Equal(t, KindValidation, KindOf(err))
	assert.EqualError(t, err, "Please enter a valid email address")
	assert.False(t, called)
}

func TestFindPeer_NotFound(t *testing.T) {
	h := newHarness()

	_, err := h.o.FindPeer(context.Background(), "nobody@x.com")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.EqualError(t, err, "No user found with that email address")
}

func TestFindPeer_DirectoryError(t *testing.T) {
	h := newHarness()
	h.profiles.findErrs["bob@x.com"] = errors.New("connection reset")

	_, err := h.o.FindPeer(context.Background(), "bob@x.com")
	assert.Equal(t, KindDirectory, KindOf(err))
	assert.EqualError(t, err, "Error searching for user: connection reset")
}
