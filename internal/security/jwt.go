package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/amarket/chat-service/internal/domain"

	"github.com/golang-jwt/jwt"
)

// Все ошибки токена оборачивают domain.ErrAuthenticationRequired.
var (
	ErrInvalidToken    = fmt.Errorf("%w: invalid token", domain.ErrAuthenticationRequired)
	ErrInvalidIssuer   = fmt.Errorf("%w: invalid issuer", domain.ErrAuthenticationRequired)
	ErrInvalidAudience = fmt.Errorf("%w: invalid audience", domain.ErrAuthenticationRequired)
	ErrTokenExpired    = fmt.Errorf("%w: token expired", domain.ErrAuthenticationRequired)
	ErrInvalidSubject  = fmt.Errorf("%w: invalid subject", domain.ErrAuthenticationRequired)
)

type AccessClaims struct {
	jwt.StandardClaims
}

// Verifier проверяет access-токены RS256, выпущенные сервисом аутентификации.
// Сервис чата токены не выпускает, только проверяет.
type Verifier struct {
	public    *rsa.PublicKey
	issuer    string
	audience  string
	clockSkew time.Duration
	now       func() time.Time
}

func NewVerifier(public *rsa.PublicKey, issuer, audience string, clockSkew time.Duration) *Verifier {
	return &Verifier{
		public:    public,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		now:       time.Now,
	}
}

// Verify разбирает токен и возвращает id пользователя из sub.
func (v *Verifier) Verify(tokenStr string) (domain.UserID, error) {
	claims, err := v.ParseAndValidate(tokenStr)
	if err != nil {
		return 0, err
	}
	return SubjectAsUserID(claims)
}

func (v *Verifier) ParseAndValidate(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parser := &jwt.Parser{SkipClaimsValidation: true} // exp/nbf проверяем сами с учётом clockSkew
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok || t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, ErrInvalidToken
		}
		return v.public, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Inner != nil && errors.Is(ve.Inner, domain.ErrAuthenticationRequired) {
			return nil, ve.Inner
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, ErrInvalidIssuer
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, ErrInvalidAudience
	}

	now := v.now()
	if claims.ExpiresAt == 0 {
		return nil, ErrTokenExpired
	}
	exp := time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)
	nbf := time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)
	if now.After(exp) || now.Before(nbf) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

func SubjectAsUserID(claims *AccessClaims) (domain.UserID, error) {
	if claims == nil || claims.Subject == "" {
		return 0, ErrInvalidSubject
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidSubject
	}
	return domain.UserID(id), nil
}

// Signer выпускает токены тем же форматом; нужен тестам и локальной отладке.
type Signer struct {
	private  *rsa.PrivateKey
	issuer   string
	audience string
	ttl      time.Duration
}

func NewSigner(private *rsa.PrivateKey, issuer, audience string, ttl time.Duration) *Signer {
	return &Signer{private: private, issuer: issuer, audience: audience, ttl: ttl}
}

func (s *Signer) Sign(userID domain.UserID, now time.Time) (string, error) {
	claims := AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.FormatInt(int64(userID), 10),
			Issuer:    s.issuer,
			Audience:  s.audience,
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.private)
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(b)
}
