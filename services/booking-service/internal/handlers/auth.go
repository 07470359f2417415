package handlers

import (
	"net/http"
	"strings"

	"github.com/Gabi10k2/gabibrx/libs/auth"
)

// isAdminRequest reports whether the request carries a valid admin bearer
// token. Missing or malformed tokens simply mean "not admin"; the caller
// decides whether admin rights are required.
func (h *BookingHandler) isAdminRequest(r *http.Request) bool {
	if h.jwtSecret == "" {
		return false
	}
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	claims, err := auth.ParseAndVerifyHS256(token, h.jwtSecret)
	if err != nil {
		return false
	}
	return claims.Role == auth.RoleAdmin
}
