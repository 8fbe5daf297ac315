package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dimitrije/raidroom-api/internal/services"
	"github.com/dimitrije/raidroom-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

const (
	UserIDKey        = "user_id"
	CodeUnauthorized = "unauthorized"
)

var (
	errMissingHeader   = errors.New("missing authorization header")
	errMalformedHeader = errors.New("invalid authorization header format")
)

// TokenValidator resolves a bearer token to its claims. Tokens are minted by
// the session layer; this service only verifies them.
type TokenValidator interface {
	ValidateAccessToken(token string) (*services.Claims, error)
}

// Auth identifies the caller from the bearer token and stores the user id on
// the context for the room handlers.
func Auth(tokens TokenValidator) drift.HandlerFunc {
	return func(c *drift.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			Reject(c, err.Error())
			return
		}

		claims, err := tokens.ValidateAccessToken(token)
		if err != nil || claims.UserID == uuid.Nil {
			Reject(c, "invalid or expired token")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// Reject answers 401 in the API's error envelope.
func Reject(c *drift.Context, message string) {
	_ = c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Code: CodeUnauthorized, Message: message})
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", errMalformedHeader
	}
	return token, nil
}

func GetUserID(c *drift.Context) uuid.UUID {
	if id, ok := c.Get(UserIDKey); ok {
		if uid, ok := id.(uuid.UUID); ok {
			return uid
		}
	}
	return uuid.Nil
}
