// Package httpclient provides the outbound HTTP client used by the
// platform adapters and the analytics sink.
package httpclient

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/socialia/errors"
)

// Client wraps http.Client with scheme and private-address guards so a
// hostile payload field (e.g. a crafted webhook URL) cannot redirect a
// post into the local network.
type Client struct {
	*http.Client
	blockPrivateIP bool
	maxRedirects   int
}

// New creates a guarded HTTP client with the given request timeout.
func New(timeout time.Duration) *Client {
	c := &Client{
		Client: &http.Client{
			Timeout: timeout,
		},
		blockPrivateIP: true,
		maxRedirects:   10,
	}

	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		if err := c.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	return c
}

// validateURL rejects non-HTTP schemes and private or loopback hosts.
func (c *Client) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return errors.Newf("scheme %q not allowed", scheme)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return errors.New("URL missing hostname")
	}

	if !c.blockPrivateIP {
		return nil
	}

	if isLocalhost(hostname) {
		return errors.New("localhost access blocked")
	}
	if ip := net.ParseIP(hostname); ip != nil && isPrivateIP(ip) {
		return errors.Newf("private IP address blocked: %s", hostname)
	}

	return nil
}

// Do executes an HTTP request after validating its URL.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	return c.Client.Do(req)
}

// Get is a convenience wrapper with URL validation.
func (c *Client) Get(urlStr string) (*http.Response, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.validateURL(u); err != nil {
		return nil, err
	}
	return c.Client.Get(urlStr)
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified()
}

func isLocalhost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	return hostname == "localhost" ||
		hostname == "localhost.localdomain" ||
		strings.HasSuffix(hostname, ".localhost")
}

// WrapClient wraps an existing http.Client without address guards.
// Only for tests that talk to httptest servers on localhost.
func WrapClient(client *http.Client) *Client {
	return &Client{
		Client:         client,
		blockPrivateIP: false,
		maxRedirects:   10,
	}
}
