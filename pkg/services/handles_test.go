package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestHandleRegistry_Lifecycle(t *testing.T) {
	r := NewHandleRegistry("")

	a := r.Create([]byte("same"))
	b := r.Create([]byte("same"))
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, DefaultHandleBase+"/"))
	assert.Equal(t, 2, r.Len())

	body, _, ok := r.Resolve(a)
	require.True(t, ok)
	assert.Equal(t, "same", string(body))

	r.Revoke(a)
	r.Revoke(a)
	_, _, ok = r.Resolve(a)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestHandleRegistry_ContentType(t *testing.T) {
	r := NewHandleRegistry("http://127.0.0.1:7488/blobs/")

	h := r.Create(pngHeader)
	assert.True(t, strings.HasPrefix(h, "http://127.0.0.1:7488/blobs/"))

	_, contentType, ok := r.Resolve(h)
	require.True(t, ok)
	assert.Equal(t, "image/png", contentType)
}

func TestHandleRegistry_ServeHTTP(t *testing.T) {
	r := NewHandleRegistry("http://example.test/blobs")
	h := r.Create(pngHeader)
	id := h[strings.LastIndex(h, "/")+1:]

	t.Run("get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blobs/"+id, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, pngHeader, rec.Body.Bytes())
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/blobs/"+id, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("delete revokes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/blobs/"+id, nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Zero(t, r.Len())

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blobs/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestHandleRegistry_Sweep(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	r := NewHandleRegistry("/blobs")
	r.now = clock.now

	old := r.Create([]byte("old"))
	clock.advance(time.Minute)
	used := r.Create([]byte("used"))
	clock.advance(time.Minute)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, used, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, r.Sweep(clock.t.Add(-30*time.Second)))
	_, _, ok := r.Resolve(old)
	assert.False(t, ok)
	_, _, ok = r.Resolve(used)
	assert.True(t, ok)

	assert.Zero(t, r.Sweep(clock.t.Add(-30*time.Second)))
}

func TestHandleRegistry_LimitEvictsLeastRecentlyUsed(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	r := NewHandleRegistry("/blobs")
	r.now = clock.now
	r.SetLimit(2)

	a := r.Create([]byte("a"))
	clock.advance(time.Second)
	b := r.Create([]byte("b"))
	clock.advance(time.Second)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, a, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	clock.advance(time.Second)

	c := r.Create([]byte("c"))
	assert.Equal(t, 2, r.Len())

	_, _, ok := r.Resolve(b)
	assert.False(t, ok, "b was the least recently used")
	_, _, ok = r.Resolve(a)
	assert.True(t, ok)
	_, _, ok = r.Resolve(c)
	assert.True(t, ok)

	for range 50 {
		r.Create([]byte("x"))
	}
	assert.Equal(t, 2, r.Len())
}
