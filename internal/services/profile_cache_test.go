package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
)

type memProfiles struct {
	byID   map[string]models.Profile
	gets   int
	putErr error
}

func (m *memProfiles) Get(_ context.Context, id string) (*models.Profile, error) {
	m.gets++
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (m *memProfiles) FindByEmail(_ context.Context, email string) ([]models.Profile, error) {
	var out []models.Profile
	for _, p := range m.byID {
		if p.Email == email {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProfiles) Put(_ context.Context, p *models.Profile) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.byID[p.ID] = *p
	return nil
}

func (m *memProfiles) NewKey(context.Context) (string, error) { return "key-1", nil }

func TestProfileCache_ReadThrough(t *testing.T) {
	mr, rdb := newTestRedis(t)
	dir := &memProfiles{byID: map[string]models.Profile{"u1": {ID: "u1", DisplayName: "alice", Email: "a@x.com"}}}
	cache := NewProfileCache(dir, rdb, discard)

	p, err := cache.Get(bg, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.DisplayName)
	assert.True(t, mr.Exists("cache:profile:u1"))

	p, err = cache.Get(bg, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.DisplayName)
	assert.Equal(t, 1, dir.gets)

	ttl := mr.TTL("cache:profile:u1")
	assert.True(t, ttl > 0 && ttl <= ProfileCacheTTL)
}

func TestProfileCache_MissIsNotCached(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cache := NewProfileCache(&memProfiles{byID: map[string]models.Profile{}}, rdb, discard)

	_, err := cache.Get(bg, "nobody")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.False(t, mr.Exists("cache:profile:nobody"))
}

func TestProfileCache_PutRefreshes(t *testing.T) {
	_, rdb := newTestRedis(t)
	dir := &memProfiles{byID: map[string]models.Profile{"u1": {ID: "u1", DisplayName: "alice"}}}
	cache := NewProfileCache(dir, rdb, discard)

	_, err := cache.Get(bg, "u1")
	require.NoError(t, err)

	require.NoError(t, cache.Put(bg, &models.Profile{ID: "u1", DisplayName: "alice", AvatarURL: "https://img/new.png", CreatedAt: time.Unix(0, 0).UTC()}))
	p, err := cache.Get(bg, "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://img/new.png", p.AvatarURL)
	assert.Equal(t, 1, dir.gets)
}

func TestProfileCache_FailedPutDropsEntry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	dir := &memProfiles{byID: map[string]models.Profile{"u1": {ID: "u1", DisplayName: "alice"}}}
	cache := NewProfileCache(dir, rdb, discard)

	_, err := cache.Get(bg, "u1")
	require.NoError(t, err)

	dir.putErr = errors.New("write failed")
	require.Error(t, cache.Put(bg, &models.Profile{ID: "u1", DisplayName: "bob"}))
	assert.False(t, mr.Exists("cache:profile:u1"))
}

func TestProfileCache_PassThrough(t *testing.T) {
	_, rdb := newTestRedis(t)
	dir := &memProfiles{byID: map[string]models.Profile{"u1": {ID: "u1", Email: "a@x.com"}}}
	cache := NewProfileCache(dir, rdb, discard)

	found, err := cache.FindByEmail(bg, "a@x.com")
	require.NoError(t, err)
	require.Len(t, found, 1)

	key, err := cache.NewKey(bg)
	require.NoError(t, err)
	assert.Equal(t, "key-1", key)
}
