// AngelaMos | 2026
// entitlement.go

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

type AccessChecker interface {
	IsEntitled(ctx context.Context, userID, resourceID int64) (bool, error)
}

// RequireEntitlement gates a route on the resource id found in the named
// URL parameter. It must run after Authenticator. A failed lookup denies.
func RequireEntitlement(
	checker AccessChecker,
	param string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID <= 0 {
				core.Unauthorized(w, "")
				return
			}

			resourceID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil || resourceID <= 0 {
				core.BadRequest(w, "invalid resource id")
				return
			}

			ok, err := checker.IsEntitled(r.Context(), userID, resourceID)
			if err != nil {
				if errors.Is(err, core.ErrNotFound) {
					core.NotFound(w, "resource")
					return
				}
				slog.ErrorContext(r.Context(), "entitlement check failed",
					"error", err,
					"user_id", userID,
					"resource_id", resourceID,
				)
				core.InternalServerError(w, err)
				return
			}

			if !ok {
				core.Forbidden(w, "no active access for this resource")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
