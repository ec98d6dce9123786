package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/taskhub/taskhub-api/internal/domain/user"
	"github.com/taskhub/taskhub-api/internal/pkg/jwt"
	"github.com/taskhub/taskhub-api/internal/pkg/logger"
	"github.com/taskhub/taskhub-api/internal/pkg/response"
)

type contextKey string

const (
	UserIDKey  contextKey = "user_id"
	RoleKey    contextKey = "role"
	ProfileKey contextKey = "profile"
)

// Auth returns middleware that validates JWT
func Auth(jwtService *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateAccessToken(parts[1])
			if err != nil {
				if err == jwt.ErrExpiredToken {
					response.Unauthorized(w, "Token expired")
				} else {
					response.Unauthorized(w, "Invalid token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, RoleKey, claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProfileLoader reads the stored profile of a user.
type ProfileLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.Profile, error)
}

// LoadProfile re-reads the caller's profile on every request so that role
// changes and bans apply immediately. The stored role replaces the token role.
// Must run after Auth.
func LoadProfile(loader ProfileLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == uuid.Nil {
				response.Unauthorized(w, "Authentication required")
				return
			}

			profile, err := loader.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, user.ErrUserNotFound) {
					response.Unauthorized(w, "Profile not found")
					return
				}
				logger.FromContext(r.Context()).Error().Err(err).Str("user_id", userID.String()).Msg("Failed to load profile")
				response.InternalError(w)
				return
			}

			if profile.IsBanned {
				response.Forbidden(w, "Your account has been banned")
				return
			}

			ctx := context.WithValue(r.Context(), RoleKey, string(profile.Role))
			ctx = context.WithValue(ctx, ProfileKey, profile)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// GetRole extracts role from context
func GetRole(ctx context.Context) string {
	if role, ok := ctx.Value(RoleKey).(string); ok {
		return role
	}
	return ""
}

// GetProfile returns the profile loaded by LoadProfile, or nil.
func GetProfile(ctx context.Context) *user.Profile {
	if p, ok := ctx.Value(ProfileKey).(*user.Profile); ok {
		return p
	}
	return nil
}

// WithIdentity returns ctx carrying userID and role. Used by tests of
// handlers mounted behind Auth.
func WithIdentity(ctx context.Context, userID uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, RoleKey, role)
}

// RequireRole returns middleware that checks user role
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetRole(r.Context())

			for _, role := range roles {
				if userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			response.Forbidden(w, "Insufficient permissions")
		})
	}
}

// RequireClient returns middleware that requires client role
func RequireClient() func(http.Handler) http.Handler {
	return RequireRole(string(user.RoleClient))
}

// RequireWorker returns middleware that requires worker role
func RequireWorker() func(http.Handler) http.Handler {
	return RequireRole(string(user.RoleWorker))
}

// RequireAdmin returns middleware that requires admin role
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(string(user.RoleAdmin))
}
