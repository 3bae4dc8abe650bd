// Package server exposes the chapter cache over HTTP for readers running in
// another process.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/kerbaras/mangacache/pkg/data"
	"github.com/kerbaras/mangacache/pkg/services"
	"github.com/kerbaras/mangacache/pkg/sources"
)

// ChapterResponse is the body of GET /chapters/{manga}/{chapter}.
type ChapterResponse struct {
	Chapter data.Chapter `json:"chapter"`
	Offline bool         `json:"offline"`
}

// DownloadRequest is the body of POST /downloads.
type DownloadRequest struct {
	MangaID      string `json:"mangaId"`
	ChapterID    string `json:"chapterId"`
	ChapterTitle string `json:"chapterTitle,omitempty"`
	MangaTitle   string `json:"mangaTitle,omitempty"`
}

type DownloadResponse struct {
	TaskID  string `json:"taskId"`
	Started bool   `json:"started"`
}

type Server struct {
	controller *services.MangaController
	source     sources.Source
	logger     *slog.Logger
	mux        *http.ServeMux
	handleTTL  time.Duration
}

type Option func(*Server)

// WithHandleTTL revokes page handles left unused for d. Zero disables expiry.
func WithHandleTTL(d time.Duration) Option {
	return func(s *Server) { s.handleTTL = d }
}

// New builds the HTTP surface. source is consulted for chapters that are not
// cached; nil disables the online fallback.
func New(controller *services.MangaController, source sources.Source, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		controller: controller,
		source:     source,
		logger:     logger.With("component", "server"),
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /chapters/{manga}/{chapter}", s.handleChapter)
	s.mux.HandleFunc("DELETE /chapters/{manga}/{chapter}", s.handleRemoveChapter)
	s.mux.HandleFunc("GET /downloads", s.handleDownloads)
	s.mux.HandleFunc("POST /downloads", s.handleStartDownload)
	s.mux.HandleFunc("POST /downloads/{id}/cancel", s.handleCancel)
	s.mux.HandleFunc("POST /downloads/{id}/retry", s.handleRetry)
	s.mux.HandleFunc("DELETE /downloads/{id}", s.handleRemoveTask)
	s.mux.Handle("/blobs/", controller.Handles())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on bind until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, bind string) error {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("listen %s: %w", bind, err)
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if s.handleTTL > 0 {
		go s.sweepHandles(ctx)
	}

	s.logger.Info("server listening", "address", listener.Addr().String())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// sweepHandles expires idle handles until ctx is done, ticking four times per
// TTL and at most once a second.
func (s *Server) sweepHandles(ctx context.Context) {
	ticker := time.NewTicker(max(s.handleTTL/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.expireHandles(now)
		}
	}
}

func (s *Server) expireHandles(now time.Time) int {
	n := s.controller.Handles().Sweep(now.Add(-s.handleTTL))
	if n > 0 {
		s.logger.Debug("expired idle page handles", "count", n)
	}
	return n
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	mangaID, chapterID := r.PathValue("manga"), r.PathValue("chapter")

	// Handles stay registered until the client revokes them with DELETE
	// /blobs/{id}, they sit idle past the TTL, or the cap evicts them.
	if loaded, ok := s.controller.Reader().Load(r.Context(), mangaID, chapterID); ok {
		s.writeJSON(w, http.StatusOK, ChapterResponse{Chapter: loaded.Chapter, Offline: true})
		return
	}

	if s.source == nil {
		s.writeError(w, http.StatusNotFound, "chapter not cached")
		return
	}

	chapter, err := s.fetchOnline(r.Context(), mangaID, chapterID)
	switch {
	case errors.Is(err, sources.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "chapter not found")
	case err != nil:
		s.logger.Warn("online chapter fetch failed",
			"manga_id", mangaID,
			"chapter_id", chapterID,
			"error", err,
		)
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.writeJSON(w, http.StatusOK, ChapterResponse{Chapter: *chapter})
	}
}

func (s *Server) fetchOnline(ctx context.Context, mangaID, chapterID string) (*data.Chapter, error) {
	chapter, err := s.source.FetchChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	pages, err := s.source.FetchPages(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if chapter.MangaID == "" {
		chapter.MangaID = mangaID
	}
	chapter.Pages = pages
	return chapter, nil
}

func (s *Server) handleRemoveChapter(w http.ResponseWriter, r *http.Request) {
	if !s.controller.Maintenance().Remove(r.Context(), r.PathValue("manga"), r.PathValue("chapter")) {
		s.writeError(w, http.StatusInternalServerError, "failed to remove chapter")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloads(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.controller.Tasks()
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if tasks == nil {
		tasks = []data.DownloadTask{}
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleStartDownload(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MangaID == "" || req.ChapterID == "" {
		s.writeError(w, http.StatusBadRequest, "mangaId and chapterId are required")
		return
	}

	id, started, err := s.controller.Start(req.MangaID, req.ChapterID, services.ChapterInfo{
		ChapterTitle: req.ChapterTitle,
		MangaTitle:   req.MangaTitle,
	})
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	s.writeJSON(w, status, DownloadResponse{TaskID: id, Started: started})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	cancelled, err := s.controller.Cancel(r.PathValue("id"))
	if err != nil {
		s.writeTaskError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, err := s.controller.Retry(r.PathValue("id"))
	if err != nil {
		s.writeTaskError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, DownloadResponse{TaskID: id, Started: true})
}

func (s *Server) handleRemoveTask(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.RemoveTask(r.PathValue("id")); err != nil {
		s.writeTaskError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNotRetryable):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
