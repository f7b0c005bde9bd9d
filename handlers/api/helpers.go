package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"tourmail/utils"
)

const operatorLocal = "operator_email"

// Claims is the JWT payload for an operator session. The operator's address
// rides along so reply-recipient resolution knows which party "we" are
// without a storage round trip.
type Claims struct {
	OperatorEmail string `json:"operator_email"`
	DisplayName   string `json:"display_name"`
	jwt.RegisteredClaims
}

// IssueToken signs a session token for an operator.
func IssueToken(secret, email, displayName string, ttl time.Duration) (string, error) {
	claims := Claims{
		OperatorEmail: email,
		DisplayName:   displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a session token and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, utils.UnauthorizedError("unexpected signing method", nil)
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, utils.UnauthorizedError("invalid session token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, utils.UnauthorizedError("invalid session token", nil)
	}
	return claims, nil
}

// SessionMiddleware authenticates requests from either the session cookie or
// a bearer token and stores the operator's address in request locals.
func SessionMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies("session")
		if tokenString == "" {
			auth := c.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				tokenString = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if tokenString == "" {
			return utils.UnauthorizedError("missing session token", nil)
		}

		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			return err
		}

		c.Locals(operatorLocal, claims.OperatorEmail)
		return c.Next()
	}
}

// OperatorAddress returns the authenticated operator's address for the
// current request.
func OperatorAddress(c *fiber.Ctx) string {
	if email, ok := c.Locals(operatorLocal).(string); ok {
		return email
	}
	return ""
}
