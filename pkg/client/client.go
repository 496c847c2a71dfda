package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	pkgerrors "github.com/tendant/simple-recovery/pkg/errors"
	"github.com/tendant/simple-recovery/pkg/response"
)

type AuthUser struct {
	UserId string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	// Parsed form of UserId
	UserUuid uuid.UUID `json:"-"`
}

func (i AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", i.UserId),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "recovery context value " + k.name
}

const (
	ACCESS_TOKEN_NAME = "access_token"
)

var (
	AuthUserKey = &contextKey{"AuthUser"}
)

// Verifier verifies a bearer token from the Authorization header or the
// access_token cookie and stores the result in the request context.
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)(next)
	}
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// AuthUserMiddleware requires a verified token carrying a UUID user_id claim
// and puts the AuthUser in the context. Must run after Verifier.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			slog.Debug("request without a valid token", "err", err)
			response.Error(w, r, pkgerrors.NotAuthenticated("authentication required"))
			return
		}

		authUser := &AuthUser{}
		if v, ok := claims["user_id"].(string); ok {
			authUser.UserId = v
		}
		if authUser.UserId == "" {
			if v, ok := claims["sub"].(string); ok {
				authUser.UserId = v
			}
		}
		if v, ok := claims["email"].(string); ok {
			authUser.Email = v
		}

		userUUID, err := uuid.Parse(authUser.UserId)
		if err != nil {
			slog.Warn("token user id is not a UUID", "userId", authUser.UserId, "error", err)
			response.Error(w, r, pkgerrors.NotAuthenticated("invalid token subject"))
			return
		}
		authUser.UserUuid = userUUID

		slog.Debug("authenticated user", "user", authUser)
		ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthUser returns the authenticated user stored by AuthUserMiddleware
func GetAuthUser(ctx context.Context) (*AuthUser, bool) {
	authUser, ok := ctx.Value(AuthUserKey).(*AuthUser)
	return authUser, ok && authUser != nil
}

// WithAuthUser returns a context carrying userID as the authenticated user
func WithAuthUser(ctx context.Context, userID uuid.UUID, email string) context.Context {
	return context.WithValue(ctx, AuthUserKey, &AuthUser{
		UserId:   userID.String(),
		Email:    email,
		UserUuid: userID,
	})
}

// RequireUserID returns the authenticated user's id or a NOT_AUTHENTICATED error
func RequireUserID(r *http.Request) (uuid.UUID, error) {
	authUser, ok := GetAuthUser(r.Context())
	if !ok || authUser.UserUuid == uuid.Nil {
		return uuid.Nil, pkgerrors.NotAuthenticated("authentication required")
	}
	return authUser.UserUuid, nil
}

// IssueToken signs an HS256 access token for userID. Used by the in-memory
// development server and tests.
func IssueToken(secret []byte, userID uuid.UUID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     userID.String(),
		"user_id": userID.String(),
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
