package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ssergeev/studysync/internal/common"
)

// HTTPClient implements Client against the sync server's REST API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
	}
}

type errorBody struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	QuotaUsedBytes  int64  `json:"quota_used_bytes"`
	QuotaLimitBytes int64  `json:"quota_limit_bytes"`
}

// mapError converts a non-2xx response to the shared sentinel errors so the
// device-side services can errors.Is/As on them.
func mapError(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", common.ErrorUnauthorized, eb.Message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", common.ErrorAccessDenied, eb.Message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", common.ErrorNotFound, eb.Message)
	case http.StatusConflict:
		return &common.QuotaExceededError{UsedBytes: eb.QuotaUsedBytes, LimitBytes: eb.QuotaLimitBytes}
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", common.ErrorValidation, eb.Message)
	default:
		return fmt.Errorf("%w: server returned %d: %s", common.ErrorInternal, status, eb.Message)
	}
}

// do performs one JSON round trip. out may be nil for calls where only the
// status matters.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/ping", nil, nil)
}

func (c *HTTPClient) RegisterSession(ctx context.Context, chapterID, courseID string) (string, error) {
	in := struct {
		CourseID string `json:"course_id,omitempty"`
	}{CourseID: courseID}

	var out struct {
		SessionID string `json:"session_id"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/chapters/"+url.PathEscape(chapterID)+"/sessions", in, &out)
	if err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func (c *HTTPClient) ListSessions(ctx context.Context, chapterID string) ([]SessionSummary, error) {
	var out struct {
		Sessions []SessionSummary `json:"sessions"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/chapters/"+url.PathEscape(chapterID)+"/sessions", nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *HTTPClient) FetchSessionState(ctx context.Context, chapterID, courseID string) (*SessionState, error) {
	path := "/v1/chapters/" + url.PathEscape(chapterID) + "/session-state"
	if courseID != "" {
		path += "?course_id=" + url.QueryEscape(courseID)
	}

	out := &SessionState{}
	if err := c.do(ctx, http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	in := struct {
		ChapterID     string          `json:"chapter_id"`
		TurnIndex     int             `json:"turn_index"`
		UserMessage   string          `json:"user_message"`
		AgentResponse string          `json:"agent_response"`
		TurnOutcome   json.RawMessage `json:"turn_outcome,omitempty"`
	}{
		ChapterID:     turn.ChapterID,
		TurnIndex:     turn.TurnIndex,
		UserMessage:   turn.UserMessage,
		AgentResponse: turn.AgentResponse,
		TurnOutcome:   turn.Outcome,
	}
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/turns", in, nil)
}

func (c *HTTPClient) UpsertMemory(ctx context.Context, sessionID, chapterID string, memory, agentState json.RawMessage) error {
	in := struct {
		ChapterID  string          `json:"chapter_id"`
		MemoryJSON json.RawMessage `json:"memory_json"`
		AgentState json.RawMessage `json:"agent_state,omitempty"`
	}{ChapterID: chapterID, MemoryJSON: memory, AgentState: agentState}

	return c.do(ctx, http.MethodPut, "/v1/sessions/"+url.PathEscape(sessionID)+"/memory", in, nil)
}

func (c *HTTPClient) UpsertReport(ctx context.Context, sessionID, chapterID, reportMD string) error {
	in := struct {
		ChapterID string `json:"chapter_id"`
		ReportMD  string `json:"report_md"`
	}{ChapterID: chapterID, ReportMD: reportMD}

	return c.do(ctx, http.MethodPut, "/v1/sessions/"+url.PathEscape(sessionID)+"/report", in, nil)
}

func (c *HTTPClient) RequestUploadGrant(ctx context.Context, chapterID, filename string, sizeBytes int64) (*UploadGrant, error) {
	in := struct {
		ChapterID     string `json:"chapter_id"`
		Filename      string `json:"filename"`
		FileSizeBytes int64  `json:"file_size_bytes"`
	}{ChapterID: chapterID, Filename: filename, FileSizeBytes: sizeBytes}

	out := &UploadGrant{}
	if err := c.do(ctx, http.MethodPost, "/v1/storage/workspace/upload-url", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ConfirmUpload(ctx context.Context, in ConfirmUpload) (*QuotaUsage, error) {
	out := &QuotaUsage{}
	if err := c.do(ctx, http.MethodPost, "/v1/storage/workspace/confirm", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListFiles(ctx context.Context) (*FileList, error) {
	out := &FileList{}
	if err := c.do(ctx, http.MethodGet, "/v1/storage/workspace/files", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}
