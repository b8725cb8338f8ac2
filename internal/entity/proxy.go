package entity

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Proxy is an authenticated egress proxy. Two proxies are the same proxy when
// all four fields are equal.
type Proxy struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Server returns the host:port address of the proxy.
func (p Proxy) Server() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// String identifies the proxy in logs without leaking its password.
func (p Proxy) String() string {
	return p.Username + "@" + p.Server()
}

// ParseProxy parses one "host:port:username:password" record. Errors never
// include the password.
func ParseProxy(line string) (Proxy, error) {
	parts := strings.Split(strings.TrimSpace(line), ":")
	if len(parts) != 4 {
		return Proxy{}, fmt.Errorf("malformed proxy record: want 4 fields, got %d", len(parts))
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port <= 0 || port > 65535 {
		return Proxy{}, fmt.Errorf("malformed proxy record %s: invalid port %q", parts[0], parts[1])
	}
	if parts[0] == "" {
		return Proxy{}, errors.New("malformed proxy record: empty host")
	}
	return Proxy{Host: parts[0], Port: port, Username: parts[2], Password: parts[3]}, nil
}

// ParseProxies parses every record, skipping blank and comment lines.
// Malformed records are skipped and returned as errors so callers can log them.
func ParseProxies(lines []string) ([]Proxy, []error) {
	var (
		proxies []Proxy
		errs    []error
	)
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := ParseProxy(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i+1, err))
			continue
		}
		proxies = append(proxies, p)
	}
	return proxies, errs
}
