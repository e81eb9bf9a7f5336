package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lifeline-ems/dispatch/internal/shared/config"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Role identifies what an authenticated actor is allowed to do.
type Role string

const (
	// RoleOperator may dispatch ambulances it owns.
	RoleOperator Role = "operator"
	// RoleHospital may update its own capacity and accept/reject arrivals.
	RoleHospital Role = "hospital"
	// RoleAdmin may do everything, including telemetry-driven transitions.
	RoleAdmin Role = "admin"
)

// Actor is the request-scoped identity extracted from JWT claims.
// It replaces any ambient session state: every operation that needs to know
// who is acting receives an Actor explicitly.
type Actor struct {
	ID types.ID `json:"sub"`
	// Role determines the permitted operation surface.
	Role Role `json:"role"`
	// HospitalID is set for hospital actors: the hospital organization they own.
	HospitalID types.ID `json:"hospital_id,omitempty"`
}

// Claims extends JWT claims with dispatch-specific data
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	HospitalID string `json:"hospital_id,omitempty"`
}

// Middleware creates JWT authentication middleware
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			actor := &Actor{
				ID:         types.ID(claims.Subject),
				Role:       Role(claims.Role),
				HospitalID: types.ID(claims.HospitalID),
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// WithActor returns a context carrying the given actor.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// GetActor extracts the actor from request context
func GetActor(ctx context.Context) *Actor {
	actor, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return actor
}

// RequireRoles creates middleware that requires one of the given roles
func RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := GetActor(r.Context())
			if actor == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			for _, role := range roles {
				if actor.Role == role || actor.Role == RoleAdmin {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}

// OwnsHospital reports whether the actor controls the given hospital.
func (a *Actor) OwnsHospital(hospitalID types.ID) bool {
	if a == nil {
		return false
	}
	return a.Role == RoleAdmin || (a.Role == RoleHospital && a.HospitalID == hospitalID)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
