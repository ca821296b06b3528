package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Validator authenticates tokens presented by new connections and API calls.
type Validator interface {
	Verify(token string) (string, error)
}

type JWTValidator struct {
	alg    string
	pubKey *rsa.PublicKey
	secret []byte
}

func NewJWTValidator(alg, secret, pubKeyPath string) (*JWTValidator, error) {
	jv := &JWTValidator{alg: alg}
	switch alg {
	case "RS256":
		b, err := os.ReadFile(pubKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read pubkey: %w", err)
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(b)
		if err != nil {
			return nil, fmt.Errorf("parse pubkey: %w", err)
		}
		jv.pubKey = key
	case "HS256":
		if secret == "" {
			return nil, errors.New("hs256 secret required")
		}
		jv.secret = []byte(secret)
	default:
		return nil, errors.New("unsupported alg")
	}
	return jv, nil
}

// Verify returns the user id on success.
func (j *JWTValidator) Verify(token string) (string, error) {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.alg {
			return nil, errors.New("unexpected signing method")
		}
		if j.alg == "RS256" {
			return j.pubKey, nil
		}
		return j.secret, nil
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{j.alg}))
	tok, err := parser.Parse(token, keyFunc)
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", errors.New("invalid token")
	}
	for _, k := range []string{"sub", "userId", "id"} {
		if v, _ := claims[k].(string); v != "" {
			return v, nil
		}
	}
	return "", errors.New("user id claim missing")
}
