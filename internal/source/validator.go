// Package source allow-lists and normalizes untrusted avatar source URLs
// before any network call is made.
package source

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/phrazzld/scry-avatars/internal/domain"
)

// DefaultAllowedHosts lists the avatar hosting domains accepted out of the box.
// Entries starting with "*." match the bare domain and any subdomain.
var DefaultAllowedHosts = []string{
	"*.googleusercontent.com",
	"avatars.githubusercontent.com",
	"secure.gravatar.com",
	"www.gravatar.com",
	"gravatar.com",
	"platform-lookaside.fbsbx.com",
	"graph.facebook.com",
	"pbs.twimg.com",
	"abs.twimg.com",
	"cdn.discordapp.com",
	"media.licdn.com",
	"graph.microsoft.com",
}

// googleSizeSuffix matches the "=s96-c" style size directive on Google avatar URLs.
var googleSizeSuffix = regexp.MustCompile(`=s\d+(-c)?$`)

// GoogleAvatarSize is the edge length requested from Google avatar URLs.
const GoogleAvatarSize = 256

// Validator checks avatar source URLs against an allow-list.
type Validator struct {
	allowedHosts []string
}

// NewValidator creates a Validator for the given host patterns.
// If hosts is empty, DefaultAllowedHosts is used.
func NewValidator(hosts []string) *Validator {
	if len(hosts) == 0 {
		hosts = DefaultAllowedHosts
	}
	normalized := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			normalized = append(normalized, h)
		}
	}
	return &Validator{allowedHosts: normalized}
}

// Validate parses raw and returns the normalized URL to fetch. It fails with
// a domain.KindInvalidSource error when the URL is malformed, uses a scheme
// other than http(s), or its host is not allow-listed.
func (v *Validator) Validate(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.NewIngestError(domain.KindInvalidSource, "source URL is empty", nil)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, domain.NewIngestError(domain.KindInvalidSource, "source URL is malformed", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "https", "http":
		u.Scheme = "https"
	default:
		return nil, domain.NewIngestError(domain.KindInvalidSource,
			fmt.Sprintf("unsupported scheme %q", u.Scheme), nil)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, domain.NewIngestError(domain.KindInvalidSource, "source URL has no host", nil)
	}
	if !v.IsAllowed(host) {
		return nil, domain.NewIngestError(domain.KindInvalidSource,
			fmt.Sprintf("unsupported host %q", host), nil)
	}

	port := u.Port()
	if port == "" || port == "443" || port == "80" {
		u.Host = host
	} else {
		u.Host = net.JoinHostPort(host, port)
	}
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	if MatchHost(host, "*.googleusercontent.com") {
		u.Path = googleSizeSuffix.ReplaceAllString(u.Path, fmt.Sprintf("=s%d-c", GoogleAvatarSize))
		u.RawPath = ""
	}

	return u, nil
}

// IsAllowed reports whether host matches any allow-listed pattern.
func (v *Validator) IsAllowed(host string) bool {
	for _, pattern := range v.allowedHosts {
		if MatchHost(host, pattern) {
			return true
		}
	}
	return false
}

// MatchHost matches host against an exact pattern or a "*.suffix" wildcard.
// The wildcard also matches the bare suffix domain.
func MatchHost(host, pattern string) bool {
	host = strings.ToLower(host)
	pattern = strings.ToLower(pattern)

	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:]
		return strings.HasSuffix(host, suffix) || host == suffix[1:]
	}
	return host == pattern
}
