package session

import (
	"net/http"
	"net/url"
	"time"
)

// TokenCookieName is the cookie the server sets on sign-in.
const TokenCookieName = "token"

// CookieStore expires the session cookie.
type CookieStore interface {
	ExpireToken() error
}

// ExpiredTokenCookie is the cookie that overwrites the session cookie:
// empty value, path "/", expiry at the Unix epoch.
func ExpiredTokenCookie() *http.Cookie {
	return &http.Cookie{
		Name:    TokenCookieName,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	}
}

// JarCookieStore expires the cookie inside an http.CookieJar shared with the
// API client.
type JarCookieStore struct {
	jar http.CookieJar
	url *url.URL
}

// NewJarCookieStore expires cookies of jar scoped to baseURL.
func NewJarCookieStore(jar http.CookieJar, baseURL *url.URL) *JarCookieStore {
	return &JarCookieStore{jar: jar, url: baseURL}
}

func (j *JarCookieStore) ExpireToken() error {
	j.jar.SetCookies(j.url, []*http.Cookie{ExpiredTokenCookie()})
	return nil
}
