package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
)

const (
	defaultOperatorTokenTTL = time.Hour
	defaultSigningMethod    = "HS256"

	// Issuer of operator tokens
	TokenIssuer = "gizmocoin"

	// Scope every operator token carries
	ScopeOperator = "operator"
)

type OperatorClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

type TokenConfig struct {
	// Secret key to sign operator tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Lifetime of issued token
	// If not set than default is used
	TTL time.Duration
}

// Token issues and verifies operator JWTs
type Token struct {
	key []byte
	alg jwt.SigningMethod
	ttl time.Duration
}

func NewToken(cfg TokenConfig) (*Token, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaultOperatorTokenTTL
	}

	alg := jwt.GetSigningMethod(cfg.Alg)
	if alg == nil {
		return nil, fmt.Errorf("unknown signing method %q", cfg.Alg)
	}

	return &Token{
		key: []byte(cfg.SecretKey),
		alg: alg,
		ttl: cfg.TTL,
	}, nil
}

// Issue token for the operator
func (m *Token) Issue(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("subject must not be empty")
	}

	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(m.ttl)

	token := jwt.NewWithClaims(m.alg, OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    TokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Scope: ScopeOperator,
	})

	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error while signing operator token. Err: %w", err)
	}

	return signed, expiresAt, nil
}

// Parse and validate operator token, return its subject
func (m *Token) Parse(token string) (string, error) {
	claims := &OperatorClaims{}

	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return m.key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
	}
	if claims.Scope != ScopeOperator {
		return "", fmt.Errorf("%w: token scope %q is not operator", apperrors.ErrUnauthorized, claims.Scope)
	}

	return claims.Subject, nil
}

func (m *Token) Authorize(ctx context.Context) error {
	cred, _ := CredentialFrom(ctx)
	if cred.Token == "" {
		return fmt.Errorf("%w: operator token required", apperrors.ErrUnauthorized)
	}

	_, err := m.Parse(cred.Token)
	return err
}
