// Package invitetoken signs and verifies the short-lived tokens embedded in
// invitation accept links. The token binds the invitation id, the invited
// email and the organization so a link cannot be replayed against another
// invitation.
package invitetoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken reports a token that failed signature or shape checks.
	ErrInvalidToken = errors.New("invitetoken: invalid token")
	// ErrExpiredToken reports a token past its expiry claim.
	ErrExpiredToken = errors.New("invitetoken: token expired")
)

// Claims are the accept-link token claims. Additive changes only to keep
// previously issued links parseable.
type Claims struct {
	jwt.RegisteredClaims

	// InvitationID is the invitation the link redeems.
	InvitationID string `json:"inv,omitempty"`

	// Email the invitation was addressed to.
	Email string `json:"email,omitempty"`

	// OrganizationID the invitation joins.
	OrganizationID string `json:"org,omitempty"`
}

// Signer mints and verifies HS256 accept-link tokens with a shared secret.
type Signer struct {
	secret []byte
	issuer string
}

func NewSigner(secret []byte, issuer string) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("invitetoken: empty secret")
	}
	return &Signer{secret: secret, issuer: issuer}, nil
}

// Sign issues a token for the invitation, expiring alongside the invitation
// itself.
func (s *Signer) Sign(invitationID, email, organizationID string, expiresAt time.Time, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		InvitationID:   invitationID,
		Email:          email,
		OrganizationID: organizationID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse verifies the signature and expiry and returns the claims.
func (s *Signer) Parse(raw string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}

	if !token.Valid || claims.InvitationID == "" || claims.Email == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
