package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gradtrust/portal/internal/domain/account"
)

const (
	// AccessCookie carries the backend-issued session token.
	AccessCookie = "access_token"
	// AddressCookie carries the wallet address returned at login.
	AddressCookie = "address"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrUnexpectedAlg = errors.New("unexpected signing method")
)

// Claims is the subset of the backend token the portal relies on.
type Claims struct {
	Username string `json:"username,omitempty"`
	Address  string `json:"address,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AccountRole parses the role claim; unknown values come back as "".
func (c *Claims) AccountRole() account.Role {
	r, err := account.ParseRole(c.Role)
	if err != nil {
		return ""
	}
	return r
}

type Manager struct {
	secret    []byte
	accessTTL time.Duration
}

func NewManager(secret string, accessTTL time.Duration) *Manager {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}

	return &Manager{
		secret:    []byte(secret),
		accessTTL: accessTTL,
	}
}

// GenerateAccessToken signs a token shaped like the backend's. The portal
// never issues sessions itself; this exists for local tooling.
func (m *Manager) GenerateAccessToken(username, address string, role account.Role) (string, error) {
	now := time.Now().UTC()

	claims := Claims{
		Username: username,
		Address:  address,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			Subject:   username,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) VerifyAccessToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HMAC
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnexpectedAlg
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
