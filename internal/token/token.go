package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures. ErrExpired lets clients distinguish "try a refresh"
// from "force re-login"; both map to an unauthorized response.
var (
	ErrExpired = errors.New("token expired")
	ErrInvalid = errors.New("token invalid")
)

// Claims carried by both access and refresh tokens.
type Claims struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies signed, self-contained tokens. Verification is
// purely computational, so the request gate never needs a storage lookup.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccessToken signs a short-lived token for the given account.
func (s *Service) IssueAccessToken(userID int, email, role string) (string, error) {
	return s.issue(userID, email, role, s.accessTTL)
}

// IssueRefreshToken signs a long-lived token for the given account.
func (s *Service) IssueRefreshToken(userID int, email, role string) (string, error) {
	return s.issue(userID, email, role, s.refreshTTL)
}

func (s *Service) issue(userID int, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			// A unique id keeps tokens issued within the same second distinct,
			// which refresh rotation depends on.
			ID:        newTokenID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func newTokenID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}

// Verify checks signature and expiry and returns the embedded claims.
// It fails with ErrExpired or ErrInvalid.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	if !token.Valid || claims.UserID < 1 {
		return nil, ErrInvalid
	}
	return claims, nil
}
