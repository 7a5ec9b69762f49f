// Package httpcontext provides HTTP contexts that put authentication in
// front of a registration while delegating resource and MIME lookups to a
// base context.
package httpcontext

import (
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Resolver is the resource side of an HTTP context.
type Resolver interface {
	Resource(name string) (fs.File, error)
	MimeType(name string) string
}

// HashPassword returns the bcrypt hash BasicAuth expects for password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// BasicAuth admits requests carrying HTTP Basic credentials that match a
// bcrypt hash.
type BasicAuth struct {
	Resolver
	realm string
	users map[string][]byte
}

// NewBasicAuth takes usernames mapped to bcrypt hashes.
func NewBasicAuth(base Resolver, realm string, users map[string]string) *BasicAuth {
	if realm == "" {
		realm = "httpservice"
	}
	hashes := make(map[string][]byte, len(users))
	for name, hash := range users {
		hashes[name] = []byte(hash)
	}
	return &BasicAuth{Resolver: base, realm: realm, users: hashes}
}

func (b *BasicAuth) HandleSecurity(w http.ResponseWriter, r *http.Request) bool {
	user, password, ok := r.BasicAuth()
	if ok {
		if hash, known := b.users[user]; known && bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil {
			return true
		}
	}
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", b.realm))
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	return false
}

// Bearer admits requests carrying an HS256 JWT signed with a shared secret.
type Bearer struct {
	Resolver
	secret []byte
	issuer string
}

// NewBearer verifies tokens against secret and, when issuer is non-empty,
// the iss claim.
func NewBearer(base Resolver, secret, issuer string) *Bearer {
	return &Bearer{Resolver: base, secret: []byte(secret), issuer: issuer}
}

func (b *Bearer) HandleSecurity(w http.ResponseWriter, r *http.Request) bool {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return b.reject(w, "missing bearer token")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if b.issuer != "" {
		opts = append(opts, jwt.WithIssuer(b.issuer))
	}
	token, err := jwt.Parse(strings.TrimSpace(parts[1]), func(*jwt.Token) (interface{}, error) {
		return b.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return b.reject(w, "invalid token")
	}
	return true
}

func (b *Bearer) reject(w http.ResponseWriter, msg string) bool {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	http.Error(w, msg, http.StatusUnauthorized)
	return false
}
