package gate

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Cookie names owned by the gate. The access token cookie is written by the
// auth transport on sign-in; the gate only reads it.
const (
	CookieAccessToken = "eduro_session"
	CookieLastRefresh = "eduro_last_refresh"
	CookieIdentity    = "eduro_identity"
	CookieRole        = "eduro_role"
)

// payloadVersion tags the signed cookie encoding. Any other version is a
// cache miss, which lets the format evolve without breaking live sessions.
const payloadVersion = 1

// identityPayload is the signed identity cache: who the provider last
// verified and when. CachedAt is authoritative for the cache window because
// it is covered by the signature, unlike the plaintext throttle cookie.
type identityPayload struct {
	Version  int    `json:"v"`
	UserID   string `json:"uid"`
	Email    string `json:"email,omitempty"`
	CachedAt int64  `json:"ts"`
}

// rolePayload is the signed role cache. Only valid for the exact user ID it
// was recorded against.
type rolePayload struct {
	Version  int    `json:"v"`
	UserID   string `json:"uid"`
	Role     string `json:"role"`
	CachedAt int64  `json:"ts"`
}

// cookieCodec signs and verifies the gate's cache cookies with HMAC-SHA256.
// Any decoding or signature failure is reported as absence, never an error.
type cookieCodec struct {
	secret []byte
	secure bool
}

func newCookieCodec(secret string, secure bool) *cookieCodec {
	return &cookieCodec{secret: []byte(secret), secure: secure}
}

func (c *cookieCodec) sign(value []byte) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(value)
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return base64.RawURLEncoding.EncodeToString(value) + "|" + sig
}

func (c *cookieCodec) verify(signed string) ([]byte, bool) {
	encoded, sig, ok := strings.Cut(signed, "|")
	if !ok {
		return nil, false
	}

	value, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write(value)
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return nil, false
	}
	return value, true
}

func (c *cookieCodec) readIdentity(r *http.Request) (identityPayload, bool) {
	cookie, err := r.Cookie(CookieIdentity)
	if err != nil {
		return identityPayload{}, false
	}

	value, ok := c.verify(cookie.Value)
	if !ok {
		return identityPayload{}, false
	}

	var payload identityPayload
	if err := json.Unmarshal(value, &payload); err != nil || payload.Version != payloadVersion || payload.UserID == "" {
		return identityPayload{}, false
	}
	return payload, true
}

func (c *cookieCodec) readRole(r *http.Request) (rolePayload, bool) {
	cookie, err := r.Cookie(CookieRole)
	if err != nil {
		return rolePayload{}, false
	}

	value, ok := c.verify(cookie.Value)
	if !ok {
		return rolePayload{}, false
	}

	var payload rolePayload
	if err := json.Unmarshal(value, &payload); err != nil || payload.Version != payloadVersion || payload.UserID == "" {
		return rolePayload{}, false
	}
	return payload, true
}

// readLastRefresh parses the plaintext throttle cookie (epoch milliseconds).
func (c *cookieCodec) readLastRefresh(r *http.Request) (time.Time, bool) {
	cookie, err := r.Cookie(CookieLastRefresh)
	if err != nil {
		return time.Time{}, false
	}

	millis, err := strconv.ParseInt(cookie.Value, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

func (c *cookieCodec) identityCookie(payload identityPayload, maxAge time.Duration) (*http.Cookie, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return c.newCookie(CookieIdentity, c.sign(value), maxAge), nil
}

func (c *cookieCodec) roleCookie(payload rolePayload, maxAge time.Duration) (*http.Cookie, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return c.newCookie(CookieRole, c.sign(value), maxAge), nil
}

func (c *cookieCodec) lastRefreshCookie(at time.Time, maxAge time.Duration) *http.Cookie {
	return c.newCookie(CookieLastRefresh, strconv.FormatInt(at.UnixMilli(), 10), maxAge)
}

func (c *cookieCodec) newCookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpireCookies returns expired replacements for the gate's cache cookies.
// The auth transport sets these on sign-out; a signed-out browser must not
// remain authenticated through the identity cache fast path.
func ExpireCookies(secure bool) []*http.Cookie {
	codec := &cookieCodec{secure: secure}
	return []*http.Cookie{
		codec.expiredCookie(CookieIdentity),
		codec.expiredCookie(CookieRole),
		codec.expiredCookie(CookieLastRefresh),
	}
}

func (c *cookieCodec) expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
