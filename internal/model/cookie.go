package model

import "strings"

// Cookie is one persisted cookie record. ForDomain marks a domain cookie
// (sent to the domain and its subdomains); otherwise the host must match
// exactly.
type Cookie struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Domain    string `json:"domain"`
	Path      string `json:"path"`
	ForDomain bool   `json:"for_domain"`
	MaxAge    int64  `json:"max_age"`
}

// Matches reports whether the cookie should be sent to host.
func (c Cookie) Matches(host string) bool {
	domain := strings.TrimPrefix(c.Domain, ".")
	if domain == "" {
		return false
	}
	if c.ForDomain {
		return host == domain || strings.HasSuffix(host, "."+domain)
	}
	return host == domain
}
