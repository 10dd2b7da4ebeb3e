// Package safehttp provides a transport that refuses to connect to private
// networks. Use it when request targets are not fully trusted, so that
// credentials cannot be sent to internal services.
package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// NewTransport returns a pooled transport that rejects connections to
// loopback, private or link-local addresses.
func NewTransport() *http.Transport {
	t := cleanhttp.DefaultPooledTransport()
	t.DialContext = dialPublic
	return t
}

func dialPublic(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	ip := net.ParseIP(host)
	if ip == nil {
		conn.Close()
		return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
	}

	if !Allowed(ip) {
		conn.Close()
		return nil, fmt.Errorf("access to private IP %s is denied", ip)
	}

	return conn, nil
}

// Allowed reports whether ip is a public address.
func Allowed(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified())
}
