package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"tgaccess/entity"
)

// Auth resolves bearer tokens issued by the identity provider. Tokens are
// HS256 JWTs signed with a shared secret; the subject claim carries the
// account id. Password and session handling stay with the provider.
type Auth struct {
	secret []byte
}

func New(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func (a *Auth) IdentityByToken(token string) (*entity.Identity, error) {
	if len(a.secret) == 0 {
		return nil, fmt.Errorf("auth secret not configured")
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return &entity.Identity{
		Id:    c.Subject,
		Email: c.Email,
		Role:  c.Role,
	}, nil
}
