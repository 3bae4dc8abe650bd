package services

import (
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultHandleBase prefixes handle URLs when no server address is configured.
const DefaultHandleBase = "blob:mangacache"

type handleBlob struct {
	data        []byte
	contentType string
	lastUsed    time.Time
}

// HandleRegistry hands out process-local, revocable URLs standing in for
// cached page bytes. It serves live handles over HTTP.
type HandleRegistry struct {
	base  string
	limit int
	now   func() time.Time

	mu    sync.RWMutex
	blobs map[string]handleBlob
}

func NewHandleRegistry(base string) *HandleRegistry {
	base = strings.TrimRight(base, "/")
	if base == "" {
		base = DefaultHandleBase
	}
	return &HandleRegistry{base: base, now: time.Now, blobs: make(map[string]handleBlob)}
}

// SetLimit caps the number of live handles. Creating one past the cap evicts
// the least recently used. Zero means no cap.
func (r *HandleRegistry) SetLimit(n int) {
	r.mu.Lock()
	r.limit = n
	r.mu.Unlock()
}

// Create registers body and returns its handle URL. Every call yields a new handle.
func (r *HandleRegistry) Create(body []byte) string {
	id := uuid.NewString()
	blob := handleBlob{data: body, contentType: mimetype.Detect(body).String(), lastUsed: r.now()}

	r.mu.Lock()
	if r.limit > 0 {
		for len(r.blobs) >= r.limit {
			r.evictOldest()
		}
	}
	r.blobs[id] = blob
	r.mu.Unlock()
	return r.base + "/" + id
}

func (r *HandleRegistry) evictOldest() {
	var oldest string
	var at time.Time
	for id, blob := range r.blobs {
		if oldest == "" || blob.lastUsed.Before(at) {
			oldest, at = id, blob.lastUsed
		}
	}
	delete(r.blobs, oldest)
}

// Sweep revokes every handle not used since cutoff and returns how many went.
func (r *HandleRegistry) Sweep(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, blob := range r.blobs {
		if blob.lastUsed.Before(cutoff) {
			delete(r.blobs, id)
			n++
		}
	}
	return n
}

// touch marks a handle as used and returns its blob.
func (r *HandleRegistry) touch(id string) (handleBlob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	blob, ok := r.blobs[id]
	if ok {
		blob.lastUsed = r.now()
		r.blobs[id] = blob
	}
	return blob, ok
}

func (r *HandleRegistry) id(handle string) string {
	return strings.TrimPrefix(handle, r.base+"/")
}

// Resolve returns the bytes and sniffed content type behind a live handle.
func (r *HandleRegistry) Resolve(handle string) ([]byte, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	blob, ok := r.blobs[r.id(handle)]
	if !ok {
		return nil, "", false
	}
	return blob.data, blob.contentType, true
}

// Revoke releases a handle. Unknown or already revoked handles are ignored.
func (r *HandleRegistry) Revoke(handle string) {
	r.mu.Lock()
	delete(r.blobs, r.id(handle))
	r.mu.Unlock()
}

// Len is the number of live handles.
func (r *HandleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

// ServeHTTP answers GET with the handle's bytes and DELETE by revoking it.
// The handle id is the last path segment.
func (r *HandleRegistry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	id := path.Base(req.URL.Path)

	switch req.Method {
	case http.MethodGet, http.MethodHead:
		blob, ok := r.touch(id)
		if !ok {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", blob.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(blob.data)))
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if req.Method == http.MethodGet {
			w.Write(blob.data)
		}
	case http.MethodDelete:
		r.mu.Lock()
		delete(r.blobs, id)
		r.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, HEAD, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
