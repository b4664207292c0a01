package e2etest

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
)

// unsafeCookieJar accepts Secure cookies over plain HTTP so that the nosurf cookie survives against a test server.
type unsafeCookieJar struct {
	jar *cookiejar.Jar
}

func newUnsafeCookieJar() (*unsafeCookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "new cookie jar")
	}

	return &unsafeCookieJar{jar: jar}, nil
}

func (u *unsafeCookieJar) SetCookies(url *url.URL, cookies []*http.Cookie) {
	for _, cookie := range cookies {
		cookie.Secure = false
	}
	u.jar.SetCookies(url, cookies)
}

func (u *unsafeCookieJar) Cookies(url *url.URL) []*http.Cookie {
	return u.jar.Cookies(url)
}

// Cookie returns the named cookie the client would send to the server.
func (c *Client) Cookie(name string) (*http.Cookie, bool) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, false
	}
	for _, cookie := range c.client.Jar.Cookies(u) {
		if cookie.Name == name {
			return cookie, true
		}
	}
	return nil, false
}
