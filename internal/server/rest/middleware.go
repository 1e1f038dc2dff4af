package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/ssergeev/studysync/internal/common"
	"github.com/ssergeev/studysync/internal/server/auth"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// authMiddleware verifies the bearer token and stores the owning user id in
// the request context. Token issuance is external; only verification
// happens here.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing bearer token")
			return
		}

		userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, common.CodeUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestUserID returns the authenticated user id placed by authMiddleware.
func requestUserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
