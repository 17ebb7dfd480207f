package http

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of issued caller tokens
const DefaultTokenTTL = 15 * time.Minute

var (
	errMissingToken = errors.New("missing bearer token")
	errBadSubject   = errors.New("token subject is not an address")
)

// CallerClaims identifies the calling account. Subject is the 0x address.
type CallerClaims struct {
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 caller tokens.
// The verified subject is the account on whose behalf a request acts.
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
}

// NewAuthenticator creates an authenticator. An empty issuer disables the
// issuer check.
func NewAuthenticator(secret []byte, issuer string) (*Authenticator, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	return &Authenticator{
		secret: secret,
		issuer: issuer,
		ttl:    DefaultTokenTTL,
		leeway: 30 * time.Second,
	}, nil
}

// WithTTL returns a copy issuing tokens with the given lifetime.
func (a *Authenticator) WithTTL(ttl time.Duration) *Authenticator {
	cp := *a
	cp.ttl = ttl
	return &cp
}

// Issue signs a token for address.
func (a *Authenticator) Issue(address common.Address) (string, error) {
	now := time.Now()
	claims := CallerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address.Hex(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses a token and returns the caller address.
func (a *Authenticator) Verify(tokenStr string) (common.Address, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
	}
	if a.issuer != "" {
		options = append(options, jwt.WithIssuer(a.issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &CallerClaims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return common.Address{}, err
	}

	claims, ok := token.Claims.(*CallerClaims)
	if !ok || !token.Valid {
		return common.Address{}, jwt.ErrTokenInvalidClaims
	}
	if !common.IsHexAddress(claims.Subject) || !strings.HasPrefix(claims.Subject, "0x") {
		return common.Address{}, errBadSubject
	}
	return common.HexToAddress(claims.Subject), nil
}

// VerifyHeader verifies an "Authorization: Bearer <token>" header value.
func (a *Authenticator) VerifyHeader(header string) (common.Address, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return common.Address{}, errMissingToken
	}
	addr, err := a.Verify(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid bearer token: %w", err)
	}
	return addr, nil
}
