package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ssergeev/studysync/internal/common"
	"github.com/ssergeev/studysync/internal/server/services"
)

// ── wire types ────────────────────────────────────────────────────────────

type registerSessionRequest struct {
	CourseID string `json:"course_id,omitempty"`
}

type registerSessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

type appendTurnRequest struct {
	ChapterID     string          `json:"chapter_id"`
	TurnIndex     int             `json:"turn_index"`
	UserMessage   string          `json:"user_message"`
	AgentResponse string          `json:"agent_response"`
	TurnOutcome   json.RawMessage `json:"turn_outcome"`
}

type upsertMemoryRequest struct {
	ChapterID  string          `json:"chapter_id"`
	MemoryJSON json.RawMessage `json:"memory_json"`
	AgentState json.RawMessage `json:"agent_state,omitempty"`
}

type upsertReportRequest struct {
	ChapterID string `json:"chapter_id"`
	ReportMD  string `json:"report_md"`
}

type acceptedResponse struct {
	Accepted bool `json:"accepted"`
}

type turnRecordItem struct {
	TurnIndex     int             `json:"turn_index"`
	UserMessage   string          `json:"user_message"`
	AgentResponse string          `json:"agent_response"`
	TurnOutcome   json.RawMessage `json:"turn_outcome"`
	CreatedAt     time.Time       `json:"created_at"`
}

type sessionStateResponse struct {
	HasData    bool             `json:"has_data"`
	SessionID  string           `json:"session_id,omitempty"`
	Turns      []turnRecordItem `json:"turns"`
	Memory     json.RawMessage  `json:"memory,omitempty"`
	AgentState json.RawMessage  `json:"agent_state,omitempty"`
	ReportMD   string           `json:"report_md,omitempty"`
}

type sessionSummaryItem struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	TurnCount    int       `json:"turn_count"`
}

type sessionListResponse struct {
	Sessions []sessionSummaryItem `json:"sessions"`
}

type uploadURLRequest struct {
	ChapterID     string `json:"chapter_id"`
	Filename      string `json:"filename"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

type uploadURLResponse struct {
	UploadURL       string            `json:"upload_url"`
	StorageKey      string            `json:"storage_key"`
	RequiredHeaders map[string]string `json:"required_headers"`
}

type confirmUploadRequest struct {
	StorageKey    string `json:"storage_key"`
	Filename      string `json:"filename"`
	ChapterID     string `json:"chapter_id"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	SessionID     string `json:"session_id,omitempty"`
}

type quotaResponse struct {
	QuotaUsedBytes  int64 `json:"quota_used_bytes"`
	QuotaLimitBytes int64 `json:"quota_limit_bytes"`
}

type fileItem struct {
	ID            int64     `json:"id"`
	Filename      string    `json:"filename"`
	ChapterID     string    `json:"chapter_id"`
	StorageKey    string    `json:"storage_key"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	SubmittedAt   time.Time `json:"submitted_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	DownloadURL   string    `json:"download_url,omitempty"`
}

type fileListResponse struct {
	Files           []fileItem `json:"files"`
	QuotaUsedBytes  int64      `json:"quota_used_bytes"`
	QuotaLimitBytes int64      `json:"quota_limit_bytes"`
}

type errorResponse struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	QuotaUsedBytes  int64  `json:"quota_used_bytes,omitempty"`
	QuotaLimitBytes int64  `json:"quota_limit_bytes,omitempty"`
}

// ── helpers ───────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"code":"INTERNAL_ERROR","message":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// renderError maps service errors to wire errors. AccessDenied and NotFound
// stay distinct so the client can choose between hard-fail and fallback.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var quotaErr *common.QuotaExceededError

	switch {
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, common.CodeSessionNotFound, "session not found")
	case errors.Is(err, common.ErrorAccessDenied):
		writeError(w, http.StatusForbidden, common.CodeSessionAccessDenied, "access denied")
	case errors.As(err, &quotaErr):
		writeJSON(w, http.StatusConflict, errorResponse{
			Code:            common.CodeQuotaExceeded,
			Message:         quotaErr.Error(),
			QuotaUsedBytes:  quotaErr.UsedBytes,
			QuotaLimitBytes: quotaErr.LimitBytes,
		})
	case errors.Is(err, common.ErrorValidation):
		writeError(w, http.StatusBadRequest, common.CodeValidationError, err.Error())
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err.Error())
		writeError(w, http.StatusInternalServerError, common.CodeInternalError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, common.CodeValidationError, "invalid request body")
		return false
	}
	return true
}

// ── handlers ──────────────────────────────────────────────────────────────

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handleRegisterSession(w http.ResponseWriter, r *http.Request) {
	var req registerSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := s.sessions.Register(r.Context(), requestUserID(r), chi.URLParam(r, "chapterID"), req.CourseID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerSessionResponse{
		SessionID: session.ID,
		CreatedAt: session.CreatedAt,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.sessions.ListSummaries(r.Context(), requestUserID(r), chi.URLParam(r, "chapterID"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	resp := sessionListResponse{Sessions: make([]sessionSummaryItem, 0, len(summaries))}
	for _, sm := range summaries {
		resp.Sessions = append(resp.Sessions, sessionSummaryItem{
			SessionID:    sm.SessionID,
			CreatedAt:    sm.CreatedAt,
			LastActiveAt: sm.LastActiveAt,
			TurnCount:    sm.TurnCount,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAppendTurn(w http.ResponseWriter, r *http.Request) {
	var req appendTurnRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.sessions.AppendTurn(r.Context(), requestUserID(r), chi.URLParam(r, "sessionID"), services.TurnInput{
		ChapterID:     req.ChapterID,
		TurnIndex:     req.TurnIndex,
		UserMessage:   req.UserMessage,
		AgentResponse: req.AgentResponse,
		Outcome:       req.TurnOutcome,
	})
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	// 201 on first write and duplicate alike: the append is idempotent.
	writeJSON(w, http.StatusCreated, acceptedResponse{Accepted: true})
}

func (s *Server) handleUpsertMemory(w http.ResponseWriter, r *http.Request) {
	var req upsertMemoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.sessions.UpsertMemory(r.Context(), requestUserID(r), chi.URLParam(r, "sessionID"),
		req.ChapterID, req.MemoryJSON, req.AgentState)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, acceptedResponse{Accepted: true})
}

func (s *Server) handleUpsertReport(w http.ResponseWriter, r *http.Request) {
	var req upsertReportRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.sessions.UpsertReport(r.Context(), requestUserID(r), chi.URLParam(r, "sessionID"),
		req.ChapterID, req.ReportMD)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, acceptedResponse{Accepted: true})
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.FetchState(r.Context(), requestUserID(r),
		chi.URLParam(r, "chapterID"), r.URL.Query().Get("course_id"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	resp := sessionStateResponse{
		HasData:    state.HasData,
		SessionID:  state.SessionID,
		Turns:      make([]turnRecordItem, 0, len(state.Turns)),
		Memory:     state.Memory,
		AgentState: state.AgentState,
		ReportMD:   state.ReportMD,
	}
	for _, t := range state.Turns {
		resp.Turns = append(resp.Turns, turnRecordItem{
			TurnIndex:     t.TurnIndex,
			UserMessage:   t.UserMessage,
			AgentResponse: t.AgentResponse,
			TurnOutcome:   t.Outcome,
			CreatedAt:     t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if !decodeBody(w, r, &req) {
		return
	}

	grant, err := s.uploads.RequestGrant(r.Context(), requestUserID(r), req.ChapterID, req.Filename, req.FileSizeBytes)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadURLResponse{
		UploadURL:       grant.UploadURL,
		StorageKey:      grant.StorageKey,
		RequiredHeaders: grant.RequiredHeaders,
	})
}

func (s *Server) handleConfirmUpload(w http.ResponseWriter, r *http.Request) {
	var req confirmUploadRequest
	if !decodeBody(w, r, &req) {
		return
	}

	used, limit, err := s.uploads.ConfirmUpload(r.Context(), requestUserID(r), services.ConfirmInput{
		StorageKey: req.StorageKey,
		Filename:   req.Filename,
		ChapterID:  req.ChapterID,
		SessionID:  req.SessionID,
		SizeBytes:  req.FileSizeBytes,
	})
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, quotaResponse{QuotaUsedBytes: used, QuotaLimitBytes: limit})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.uploads.ListFiles(r.Context(), requestUserID(r))
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	resp := fileListResponse{
		Files:           make([]fileItem, 0, len(list.Files)),
		QuotaUsedBytes:  list.QuotaUsed,
		QuotaLimitBytes: list.QuotaLimit,
	}
	for _, item := range list.Files {
		f := item.File
		resp.Files = append(resp.Files, fileItem{
			ID:            f.ID,
			Filename:      f.Filename,
			ChapterID:     f.ChapterID,
			StorageKey:    f.StorageKey,
			FileSizeBytes: f.SizeBytes,
			SubmittedAt:   f.SubmittedAt,
			UpdatedAt:     f.UpdatedAt,
			DownloadURL:   item.DownloadURL,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
