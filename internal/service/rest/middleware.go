package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type ctxKey int

const claimsKey ctxKey = iota

// requester — аутентифицированный актор текущего запроса.
type requester struct {
	UserID string
	Role   domain.Role
}

// authenticate извлекает Bearer-токен, проверяет его и кладёт
// идентификатор и роль актора в контекст запроса.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}

		claims, err := s.auth.ParseToken(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, requester{
			UserID: claims.UserID,
			Role:   claims.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin пропускает дальше только администраторов.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, ok := requesterFrom(r.Context())
		if !ok || req.Role != domain.RoleAdmin {
			writeError(w, domain.ErrNotAuthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requesterFrom(ctx context.Context) (requester, bool) {
	req, ok := ctx.Value(claimsKey).(requester)
	return req, ok
}
