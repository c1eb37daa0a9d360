package security

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/amarket/chat-service/internal/domain"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeys(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestVerifier_AcceptsValidToken(t *testing.T) {
	key := newKeys(t)
	signer := NewSigner(key, "auth", "amarket", time.Minute)
	v := NewVerifier(&key.PublicKey, "auth", "amarket", 5*time.Second)

	tok, err := signer.Sign(42, time.Now())
	require.NoError(t, err)

	id, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID(42), id)
}

func TestVerifier_Rejects(t *testing.T) {
	key := newKeys(t)
	other := newKeys(t)
	now := time.Now()

	good := NewVerifier(&key.PublicKey, "auth", "amarket", 5*time.Second)

	expired, err := NewSigner(key, "auth", "amarket", time.Minute).Sign(1, now.Add(-time.Hour))
	require.NoError(t, err)
	wrongIssuer, err := NewSigner(key, "someone", "amarket", time.Minute).Sign(1, now)
	require.NoError(t, err)
	wrongAudience, err := NewSigner(key, "auth", "other", time.Minute).Sign(1, now)
	require.NoError(t, err)
	wrongKey, err := NewSigner(other, "auth", "amarket", time.Minute).Sign(1, now)
	require.NoError(t, err)
	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{Subject: "1"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, ErrTokenExpired},
		{"issuer", wrongIssuer, ErrInvalidIssuer},
		{"audience", wrongAudience, ErrInvalidAudience},
		{"foreign key", wrongKey, ErrInvalidToken},
		{"hmac", hs, ErrInvalidToken},
		{"garbage", "not-a-token", ErrInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := good.Verify(tc.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, domain.ErrAuthenticationRequired)
		})
	}
}

func TestVerifier_ClockSkew(t *testing.T) {
	key := newKeys(t)
	tok, err := NewSigner(key, "auth", "amarket", time.Minute).Sign(7, time.Now())
	require.NoError(t, err)

	v := NewVerifier(&key.PublicKey, "auth", "amarket", 10*time.Second)
	v.now = func() time.Time { return time.Now().Add(time.Minute + 5*time.Second) }
	_, err = v.Verify(tok)
	assert.NoError(t, err)

	v.now = func() time.Time { return time.Now().Add(time.Minute + time.Hour) }
	_, err = v.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestSubjectAsUserID(t *testing.T) {
	_, err := SubjectAsUserID(&AccessClaims{StandardClaims: jwt.StandardClaims{Subject: "abc"}})
	assert.ErrorIs(t, err, ErrInvalidSubject)

	_, err = SubjectAsUserID(nil)
	assert.ErrorIs(t, err, ErrInvalidSubject)

	id, err := SubjectAsUserID(&AccessClaims{StandardClaims: jwt.StandardClaims{Subject: "15"}})
	require.NoError(t, err)
	assert.Equal(t, domain.UserID(15), id)
}
