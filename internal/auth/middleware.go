package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-bot/internal/config"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
	"golang.org/x/crypto/bcrypt"
)

const operatorKey = "auth_operator"

// Operator represents the authenticated operator principal.
type Operator struct {
	Username string
}

// Middleware validates bearer tokens on the operator surface.
type Middleware struct {
	tokens *TokenManager
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(operatorKey, &Operator{Username: claims.Username})
	return c.Next()
}

// OperatorFromContext retrieves the authenticated operator.
func OperatorFromContext(c *fiber.Ctx) (*Operator, bool) {
	val := c.Locals(operatorKey)
	if val == nil {
		return nil, false
	}
	operator, ok := val.(*Operator)
	return operator, ok
}

// Login checks credentials against the configured operator account and
// issues a token on success.
func Login(cfg config.OperatorConfig, tokens *TokenManager, username, password string) (string, error) {
	if username != cfg.Username || cfg.PasswordHash == "" {
		return "", apperrors.NewUnauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(password)); err != nil {
		return "", apperrors.NewUnauthorized("invalid credentials")
	}
	token, _, err := tokens.GenerateToken(username)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return token, nil
}
