package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
)

type markerFunc func(ctx context.Context, id string) error

func (f markerFunc) MarkEmailVerified(ctx context.Context, id string) error { return f(ctx, id) }

func contextWithCancel() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

func TestVerifier_SendAndConfirm(t *testing.T) {
	mr, rdb := newTestRedis(t)
	var marked []string
	v := NewVerifier(rdb, markerFunc(func(_ context.Context, id string) error {
		marked = append(marked, id)
		return nil
	}), "http://localhost:8080", discard)

	require.NoError(t, v.Send(bg, &models.Identity{ID: "u1", Email: "a@x.com"}))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	token := strings.TrimPrefix(keys[0], VerificationKeyPrefix)
	assert.Equal(t, VerificationDuration, mr.TTL(keys[0]))

	id, err := v.Confirm(bg, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
	assert.Equal(t, []string{"u1"}, marked)

	_, err = v.Confirm(bg, token)
	assert.ErrorIs(t, err, ErrVerificationToken)
	_, err = v.Confirm(bg, "")
	assert.ErrorIs(t, err, ErrVerificationToken)
}
