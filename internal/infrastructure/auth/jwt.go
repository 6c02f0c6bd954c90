package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/subsync/backend/internal/infrastructure/config"
)

var (
	ErrInvalidToken  = errors.New("auth: invalid token")
	ErrExpiredToken  = errors.New("auth: token has expired")
	ErrInvalidClaims = errors.New("auth: invalid token claims")
)

// Role partitions the API surface: customers manage their own orders and
// subscriptions, CSR agents may act on any customer and trigger jobs.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleCSR      Role = "csr"
)

// Claims are the JWT claims carried by storefront access tokens.
type Claims struct {
	jwt.RegisteredClaims
	CustomerID string `json:"customer_id"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
}

// JWTService signs and validates access tokens.
type JWTService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
}

// NewJWTService creates a JWT service from configuration.
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret:     []byte(cfg.Secret),
		expiration: cfg.AccessTokenExpiration,
		issuer:     cfg.Issuer,
	}
}

// GenerateToken signs an access token for the given principal.
func (s *JWTService) GenerateToken(customerID uuid.UUID, email string, role Role) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiration)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   customerID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		CustomerID: customerID.String(),
		Email:      email,
		Role:       role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateToken parses and verifies an access token.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.CustomerID == "" {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

// CustomerUUID parses the customer id claim.
func (c *Claims) CustomerUUID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.CustomerID)
	if err != nil {
		return uuid.Nil, ErrInvalidClaims
	}
	return id, nil
}
