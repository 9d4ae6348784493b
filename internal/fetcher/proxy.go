package fetcher

import (
	"fmt"
	"net/url"
	"strconv"
)

// ProxyConfig routes every outbound call through an HTTP(S) proxy when Enabled.
type ProxyConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
}

// URL renders the proxy as http://[user:pass@]host:port. It returns "" when disabled.
func (p ProxyConfig) URL() string {
	if !p.Enabled || p.Host == "" {
		return ""
	}
	u := url.URL{Scheme: "http", Host: p.Server()}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u.String()
}

// Server returns host:port without credentials, as browsers expect it.
func (p ProxyConfig) Server() string {
	port := p.Port
	if port <= 0 {
		port = 80
	}
	return p.Host + ":" + strconv.Itoa(port)
}

// String hides the password so the value is safe to log.
func (p ProxyConfig) String() string {
	if !p.Enabled {
		return "disabled"
	}
	if p.Username != "" {
		return fmt.Sprintf("%s (user %s)", p.Server(), p.Username)
	}
	return p.Server()
}
