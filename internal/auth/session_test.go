package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestCodec(t *testing.T, secret string) *SessionCodec {
	t.Helper()
	codec, err := NewSessionCodec(secret, 0)
	require.NoError(t, err)
	return codec.WithClock(func() time.Time { return testNow })
}

func TestNewSessionCodecRequiresSecret(t *testing.T) {
	_, err := NewSessionCodec("", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssueAndVerify(t *testing.T) {
	codec := newTestCodec(t, "test-secret")

	issued, err := codec.Issue(42)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(24*time.Hour), issued.ExpiresAt)
	assert.Equal(t, 3, len(strings.Split(issued.Token, ".")))

	claims, err := codec.Verify(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.User.ID)
	assert.True(t, claims.Expires.Equal(issued.ExpiresAt))
	assert.Equal(t, testNow.Unix(), claims.IssuedAt.Unix())
}

func TestIssueRejectsInvalidUser(t *testing.T) {
	codec := newTestCodec(t, "test-secret")
	_, err := codec.Issue(0)
	assert.Error(t, err)
}

func TestVerifyExpired(t *testing.T) {
	codec := newTestCodec(t, "test-secret")
	issued, err := codec.Issue(7)
	require.NoError(t, err)

	stillValid := codec.WithClock(func() time.Time { return testNow.Add(23 * time.Hour) })
	_, err = stillValid.Verify(issued.Token)
	assert.NoError(t, err)

	later := codec.WithClock(func() time.Time { return testNow.Add(25 * time.Hour) })
	_, err = later.Verify(issued.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestVerifyWrongSecret(t *testing.T) {
	issued, err := newTestCodec(t, "secret-a").Issue(7)
	require.NoError(t, err)

	_, err = newTestCodec(t, "secret-b").Verify(issued.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestVerifyTamperedPayload(t *testing.T) {
	codec := newTestCodec(t, "test-secret")
	victim, err := codec.Issue(1)
	require.NoError(t, err)
	attacker, err := codec.Issue(2)
	require.NoError(t, err)

	v := strings.Split(victim.Token, ".")
	a := strings.Split(attacker.Token, ".")
	forged := strings.Join([]string{v[0], a[1], v[2]}, ".")

	_, err = codec.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	codec := newTestCodec(t, "test-secret")
	claims := SessionClaims{
		User:    SessionUser{ID: 1},
		Expires: testNow.Add(time.Hour),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestVerifyGarbage(t *testing.T) {
	codec := newTestCodec(t, "test-secret")
	for _, token := range []string{"", "abc", "a.b.c"} {
		_, err := codec.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidSession, token)
	}
}

func TestSessionCookieAttributes(t *testing.T) {
	codec := newTestCodec(t, "test-secret")
	issued, err := codec.Issue(9)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	SetSessionCookie(rec, issued)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.Equal(t, issued.Token, c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 86400, c.MaxAge)
}

func TestClearSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearSessionCookie(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestSessionToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, SessionToken(req))

	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})
	assert.Equal(t, "tok", SessionToken(req))
}

func TestSessionContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Zero(t, UserIDFromContext(req.Context()))

	ctx := WithSession(req.Context(), &SessionClaims{User: SessionUser{ID: 5}})
	claims, ok := SessionFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(5), claims.User.ID)
	assert.Equal(t, int64(5), UserIDFromContext(ctx))
}
