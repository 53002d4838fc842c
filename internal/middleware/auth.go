package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ConnectionHeader lets an HTTP caller name the websocket connection its
// mutations originate from, so broadcasts skip that connection.
const ConnectionHeader = "X-Connection-ID"

const tokenTTL = 7 * 24 * time.Hour

type Claims struct {
	Username     string `json:"username"`
	ConnectionID string `json:"connectionId"`
	jwt.RegisteredClaims
}

func GenerateToken(secret, username, connectionID string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:     username,
		ConnectionID: connectionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)), // 7 days
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies an HS256 token and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Username == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func Protected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		// Extract token from "Bearer <token>"
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization format",
			})
		}

		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		// Store user info in context
		c.Locals("username", claims.Username)
		c.Locals("connectionId", claims.ConnectionID)

		return c.Next()
	}
}

// GetUsername extracts the authenticated username from context
func GetUsername(c *fiber.Ctx) string {
	username, _ := c.Locals("username").(string)
	return username
}

// GetConnectionID returns the originating connection: the X-Connection-ID
// header when present, else the one bound into the token.
func GetConnectionID(c *fiber.Ctx) string {
	if id := strings.TrimSpace(c.Get(ConnectionHeader)); id != "" {
		return id
	}
	id, _ := c.Locals("connectionId").(string)
	return id
}
