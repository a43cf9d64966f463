package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const hostRole = "host"

// Verifier checks the shared admin credential and issues the tokens that
// let a client create sessions and join them as host.
type Verifier struct {
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// New builds a Verifier. When hash is empty the plain password is hashed
// once at startup.
func New(password, hash, secret string, ttl time.Duration) (*Verifier, error) {
	if hash == "" {
		if password == "" {
			return nil, errors.New("auth: no admin credential configured")
		}
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("auth: hash admin password: %w", err)
		}
		hash = string(h)
	}
	if secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	return &Verifier{
		passwordHash: []byte(hash),
		secret:       []byte(secret),
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

// Login exchanges the admin password for a host token.
func (v *Verifier) Login(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(v.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return v.IssueToken()
}

func (v *Verifier) IssueToken() (string, error) {
	now := v.now()
	claims := jwt.MapClaims{
		"role": hostRole,
		"iat":  now.Unix(),
		"exp":  now.Add(v.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// ValidateToken returns nil for an unexpired host token signed by us.
func (v *Verifier) ValidateToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return ErrInvalidCredentials
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["role"] != hostRole {
		return ErrInvalidCredentials
	}
	return nil
}

func (v *Verifier) VerifyHostToken(token string) bool {
	return token != "" && v.ValidateToken(token) == nil
}
