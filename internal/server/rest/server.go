// Package rest exposes the sync subsystem over HTTP/JSON.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ssergeev/studysync/internal/logging"
	"github.com/ssergeev/studysync/internal/server/models"
	"github.com/ssergeev/studysync/internal/server/services"
)

// SessionAPI is the slice of the session service the handlers need.
type SessionAPI interface {
	Register(ctx context.Context, userID, chapterID, courseID string) (*models.Session, error)
	AppendTurn(ctx context.Context, userID, sessionID string, in services.TurnInput) error
	UpsertMemory(ctx context.Context, userID, sessionID, chapterID string, memory, agentState json.RawMessage) error
	UpsertReport(ctx context.Context, userID, sessionID, chapterID, reportMD string) error
	FetchState(ctx context.Context, userID, chapterID, courseID string) (*services.SessionState, error)
	ListSummaries(ctx context.Context, userID, chapterID string) ([]*models.SessionSummary, error)
}

// UploadAPI is the slice of the upload broker the handlers need.
type UploadAPI interface {
	RequestGrant(ctx context.Context, userID, chapterID, filename string, sizeBytes int64) (*services.UploadGrant, error)
	ConfirmUpload(ctx context.Context, userID string, in services.ConfirmInput) (used, limit int64, err error)
	ListFiles(ctx context.Context, userID string) (*services.FileList, error)
}

// Server hosts the HTTP endpoint.
type Server struct {
	address   string
	logger    logging.Logger
	sessions  SessionAPI
	uploads   UploadAPI
	jwtSecret []byte
}

func NewServer(address string, l logging.Logger, sessions SessionAPI, uploads UploadAPI, secretKey string) *Server {
	return &Server{
		address:   address,
		logger:    l.With("module", "rest_server"),
		sessions:  sessions,
		uploads:   uploads,
		jwtSecret: []byte(secretKey),
	}
}

// Router assembles the chi router. Everything under /v1 except /v1/ping
// requires a bearer token.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/ping", s.handlePing)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/chapters/{chapterID}/sessions", s.handleRegisterSession)
			r.Get("/chapters/{chapterID}/sessions", s.handleListSessions)
			r.Get("/chapters/{chapterID}/session-state", s.handleSessionState)

			r.Post("/sessions/{sessionID}/turns", s.handleAppendTurn)
			r.Put("/sessions/{sessionID}/memory", s.handleUpsertMemory)
			r.Put("/sessions/{sessionID}/report", s.handleUpsertReport)

			r.Post("/storage/workspace/upload-url", s.handleUploadURL)
			r.Post("/storage/workspace/confirm", s.handleConfirmUpload)
			r.Get("/storage/workspace/files", s.handleListFiles)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
