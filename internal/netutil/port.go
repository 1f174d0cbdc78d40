// Package netutil picks the address the HTTP server listens on.
package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"syscall"
)

const defaultHost = "127.0.0.1"

// Listen binds preferred, or with fallback enabled the first free candidate.
// The listener is returned open so no other process can take the port
// between the choice and Serve. A bare-port candidate ("8191") reuses the
// host of preferred.
func Listen(preferred string, candidates []string, fallback bool) (net.Listener, error) {
	if preferred != "" {
		ln, err := tryListen(preferred)
		if ln != nil || err != nil {
			return ln, err
		}
		if !fallback {
			return nil, fmt.Errorf("preferred bind address in use: %s", preferred)
		}
		slog.Warn("preferred bind address in use, trying candidates", "preferred", preferred)
	}

	tried := []string{}
	for _, addr := range expandCandidates(preferred, candidates) {
		ln, err := tryListen(addr)
		if ln != nil || err != nil {
			return ln, err
		}
		tried = append(tried, addr)
	}
	return nil, fmt.Errorf("no free bind address among %v", tried)
}

// tryListen returns (nil, nil) when addr is already taken and an error for
// anything else, such as a malformed address.
func tryListen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	switch {
	case err == nil:
		return ln, nil
	case errors.Is(err, syscall.EADDRINUSE):
		return nil, nil
	default:
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
}

func expandCandidates(preferred string, candidates []string) []string {
	host := defaultHost
	if h, _, err := net.SplitHostPort(preferred); err == nil && h != "" {
		host = h
	}
	seen := map[string]bool{preferred: true}
	var out []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !strings.Contains(c, ":") {
			c = net.JoinHostPort(host, c)
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
