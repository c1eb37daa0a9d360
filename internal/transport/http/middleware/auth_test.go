package httpmw

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amarket/chat-service/internal/domain"

	"github.com/stretchr/testify/assert"
)

type stubVerifier map[string]domain.UserID

func (s stubVerifier) Verify(token string) (domain.UserID, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return 0, errors.New("bad token")
}

type stubUsers map[domain.UserID]domain.User

const brokenUserID domain.UserID = 500

func (s stubUsers) UserByID(_ context.Context, id domain.UserID) (*domain.User, error) {
	if id == brokenUserID {
		return nil, errors.New("connection refused")
	}
	if u, ok := s[id]; ok {
		return &u, nil
	}
	return nil, domain.ErrUserNotFound
}

func TestAuth(t *testing.T) {
	alice := domain.User{ID: 1, Username: "alice"}
	mw := Auth(stubVerifier{"good": 1, "orphan": 99, "outage": brokenUserID}, stubUsers{1: alice})

	var got domain.User
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserFromCtx(r.Context())
	}))

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer good", "", http.StatusOK},
		{"query token", "", "?access_token=good", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"invalid", "Bearer nope", "", http.StatusUnauthorized},
		{"deleted user", "Bearer orphan", "", http.StatusUnauthorized},
		{"user store down", "Bearer outage", "", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got = domain.User{}
			req := httptest.NewRequest(http.MethodGet, "/ws/chat/bob"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, alice, got)
			}
		})
	}
}

func TestPartial(t *testing.T) {
	var partial bool
	h := Partial(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		partial = IsPartial(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderPartial, "true")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, partial)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, partial)
}
