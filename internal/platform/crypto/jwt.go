package crypto

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Issuer is stamped on every access token and required on parse.
	Issuer = "libraryapi"

	clockLeeway = 5 * time.Second
)

// ErrMissingIdentity is returned for a well-signed token that names no
// user or role.
var ErrMissingIdentity = errors.New("token carries no identity")

// Claims is the access-token payload. The user id travels in the standard
// "sub" claim.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

// GenerateToken signs an access token and returns it together with its JTI,
// which logout uses as the revocation key.
func GenerateToken(secret, userID, role string, ttl time.Duration) (string, string, error) {
	if userID == "" || role == "" {
		return "", "", ErrMissingIdentity
	}
	jti := uuid.NewString()
	now := time.Now()
	c := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// ParseToken verifies signature, issuer and expiry. Tokens without a JTI
// cannot be revoked and are rejected.
func ParseToken(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.Role == "" || claims.ID == "" {
		return nil, ErrMissingIdentity
	}
	return claims, nil
}
