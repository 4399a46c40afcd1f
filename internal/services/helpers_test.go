package services

import (
	"context"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/chatooz-backend/internal/logging"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newMockDB(t *testing.T) (*CredentialStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewCredentialStore(db), mock
}

var discard = logging.Discard()

var bg = context.Background()

// recordingConn is a ChatConn that keeps everything written to it.
type recordingConn struct {
	mu      sync.Mutex
	written []interface{}
	closed  bool
}

func (c *recordingConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, v)
	return nil
}

func (c *recordingConn) ReadJSON(interface{}) error { return nil }

func (c *recordingConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *recordingConn) events() []ChatEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatEvent, 0, len(c.written))
	for _, v := range c.written {
		if ev, ok := v.(ChatEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}
