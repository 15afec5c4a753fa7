package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/talentsift/sift/pkg/errx"
	"github.com/talentsift/sift/pkg/kernel"
)

var authErrors = errx.NewRegistry("AUTH")

// Auth error codes
var (
	ErrInvalidToken = authErrors.Register("INVALID_TOKEN", errx.TypeAuthentication, 401, "Invalid or expired token")
	ErrMissingToken = authErrors.Register("MISSING_TOKEN", errx.TypeAuthentication, 401, "Missing authorization token")
	ErrTokenSigning = authErrors.Register("TOKEN_SIGNING", errx.TypeInternal, 500, "Failed to sign token")
)

// TokenClaims carries the account identity extracted from a validated token.
type TokenClaims struct {
	AccountID kernel.AccountID
	Email     kernel.Email
	ExpiresAt time.Time
}

// TokenService issues and validates account access tokens.
type TokenService struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration
}

// NewTokenService creates a TokenService signing with HS256.
func NewTokenService(secret, issuer string, tokenTTL time.Duration) *TokenService {
	return &TokenService{
		secret:   []byte(secret),
		issuer:   issuer,
		tokenTTL: tokenTTL,
	}
}

// GenerateAccessToken issues a signed token for the given account.
func (s *TokenService) GenerateAccessToken(accountID kernel.AccountID, email kernel.Email) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   accountID.String(),
		"email": email.String(),
		"iss":   s.issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", authErrors.NewWithCause(ErrTokenSigning, err)
	}

	return signed, nil
}

// ValidateAccessToken parses and verifies a token string.
func (s *TokenService) ValidateAccessToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, authErrors.New(ErrInvalidToken)
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, authErrors.NewWithCause(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, authErrors.New(ErrInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, authErrors.New(ErrInvalidToken).WithDetail("reason", "missing subject")
	}
	email, _ := claims["email"].(string)

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, authErrors.New(ErrInvalidToken)
	}

	return &TokenClaims{
		AccountID: kernel.NewAccountID(sub),
		Email:     kernel.Email(email),
		ExpiresAt: exp.Time,
	}, nil
}
