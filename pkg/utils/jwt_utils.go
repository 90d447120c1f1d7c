package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "cashbox-backend"

// Claims defines the JWT claims structure
type Claims struct {
	EmployeeID     int64  `json:"employee_id"`
	OrganizationID int64  `json:"organization_id"`
	Username       string `json:"username"`
	Role           string `json:"role"` // employee role for authorization
	jwt.RegisteredClaims
}

// GenerateAccessToken creates a signed access token for an employee.
func GenerateAccessToken(secret string, ttl time.Duration, employeeID, organizationID int64, username, role string) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := &Claims{
		EmployeeID:     employeeID,
		OrganizationID: organizationID,
		Username:       username,
		Role:           role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token string.
// It returns the claims if the token is valid, otherwise an error.
func ValidateToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer))

	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.EmployeeID <= 0 || claims.OrganizationID <= 0 {
		return nil, fmt.Errorf("token is missing employee or organization")
	}

	return claims, nil
}
