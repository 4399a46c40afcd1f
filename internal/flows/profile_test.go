package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
)

func TestProfile(t *testing.T) {
	h := newHarness(models.Profile{ID: "u1", DisplayName: "alice"})

	p, err := h.o.Profile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, defaultAvatar, p.AvatarURL)

	_, err = h.o.Profile(context.Background(), "u2")
	assert.EqualError(t, err, "User data not found in database")

	h.profiles.getErr = errors.New("down")
	_, err = h.o.Profile(context.Background(), "u1")
	assert.EqualError(t, err, "Failed to load profile: down")
	assert.Equal(t, KindDirectory, KindOf(err))
}

func TestUpdateAvatar(t *testing.T) {
	h := newHarness(models.Profile{ID: "u1", DisplayName: "alice", Email: "a@x.com"})

	p, err := h.o.UpdateAvatar(context.Background(), "u1", []byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, h.media.url, p.AvatarURL)

	require.Len(t, h.profiles.puts, 1)
	assert.Equal(t, models.Profile{ID: "u1", DisplayName: "alice", Email: "a@x.com", AvatarURL: h.media.url}, h.profiles.puts[0])

	_, err = h.o.UpdateAvatar(context.Background(), "u1", nil)
	assert.Equal(t, KindValidation, KindOf(err))

	h.media.err = errors.New("quota")
	_, err = h.o.UpdateAvatar(context.Background(), "u1", []byte{1})
	assert.EqualError(t, err, "Failed to upload image")
}
