package netx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUploadToPresignedURL(t *testing.T) {
	payload := []byte("workspace file bytes")

	t.Run("success 200 OK", func(t *testing.T) {
		var gotBody []byte
		var gotCT string
		var gotMethod string

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotCT = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			_ = r.Body.Close()
			gotBody = body
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		err := UploadToPresignedURL(context.Background(), ts.URL+"/key?X-Amz-Signature=abc", payload,
			map[string]string{"Content-Type": "application/octet-stream"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotMethod != http.MethodPut {
			t.Fatalf("expected PUT, got %s", gotMethod)
		}
		if gotCT != "application/octet-stream" {
			t.Fatalf("unexpected content type: %s", gotCT)
		}
		if string(gotBody) != string(payload) {
			t.Fatalf("body mismatch: %q", gotBody)
		}
	})

	t.Run("non-200 becomes error with body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("signature expired"))
		}))
		defer ts.Close()

		err := UploadToPresignedURL(context.Background(), ts.URL, payload, nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "signature expired") {
			t.Fatalf("expected body in error, got: %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := UploadToPresignedURL(ctx, "http://127.0.0.1:0/unreachable", payload, nil)
		if err == nil {
			t.Fatal("expected error for cancelled context")
		}
	})
}
