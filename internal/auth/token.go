package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"ms-workflow/internal/models"
)

// ExtractTokenFromRequest extracts a bearer token from the Authorization header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// ActorFromJWT extracts the caller identity from the token claims. The
// signature is checked by the OIDC middleware before this is reached; here we
// only need the sub and role claims.
func ActorFromJWT(tokenString string) (Actor, error) {
	if tokenString == "" {
		return Actor{}, errors.New("empty token")
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return Actor{}, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Actor{}, errors.New("subject claim not found in token")
	}

	role := models.RoleStudent
	if raw, ok := claims["role"].(string); ok && raw != "" {
		role = models.Role(raw)
	}

	return Actor{UserID: sub, Role: role}, nil
}
