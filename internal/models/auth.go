package models

import "github.com/golang-jwt/jwt/v5"

// Role grants access to API operations.
type Role string

const (
	// RoleViewer may read metrics and download exports.
	RoleViewer Role = "viewer"
	// RoleOperator may additionally reload snapshots.
	RoleOperator Role = "operator"
)

// JWTClaims represents the JWT payload for API tokens.
type JWTClaims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenResponse returns an issued access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}
