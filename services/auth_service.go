package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/wetdog/AQI-Catalonia-Challenge/config"
)

const RoleOperator = "operator"

var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService issues tokens for the single operator account configured
// through OPERATOR_USER and OPERATOR_PASSWORD_HASH.
type AuthService struct {
	jwtSecret    []byte
	expiryH      int
	operatorUser string
	operatorHash string
}

func NewAuthService(cfg config.JWTConfig) *AuthService {
	return &AuthService{
		jwtSecret:    []byte(cfg.Secret),
		expiryH:      cfg.ExpiryHours,
		operatorUser: cfg.OperatorUser,
		operatorHash: cfg.OperatorPasswordHash,
	}
}

func (s *AuthService) HashPassword(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(bytes), err
}

func (s *AuthService) CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Authenticate checks operator credentials and returns a signed token.
// With no password hash configured every login is refused.
func (s *AuthService) Authenticate(username, password string) (string, error) {
	if s.operatorHash == "" || username != s.operatorUser {
		return "", ErrInvalidCredentials
	}
	if !s.CheckPassword(s.operatorHash, password) {
		return "", ErrInvalidCredentials
	}
	return s.GenerateToken(username, RoleOperator)
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (s *AuthService) GenerateToken(username, role string) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", errors.New("JWT_SECRET is not configured")
	}
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(
				time.Duration(s.expiryH) * time.Hour,
			)),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.jwtSecret, nil
		},
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
