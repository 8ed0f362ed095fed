// Package probe checks reachability of upstream mail servers before an
// organization is registered, so a typo in a hostname surfaces at
// registration time instead of at the first user's login.
package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hourinbox/webmail/internal/model"
)

// Prober dials candidate servers with a bounded timeout.
type Prober struct {
	timeout time.Duration
}

// New creates a prober with the given dial timeout.
func New(timeout time.Duration) *Prober {
	return &Prober{timeout: timeout}
}

// Check dials host:port and, for implicit-TLS endpoints, completes the
// TLS handshake. It proves the server is reachable and speaking TLS
// where expected; it does not authenticate.
func (p *Prober) Check(
	ctx context.Context, host string, port int, tlsMode string, rejectUnauthorized bool,
) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: p.timeout}

	if tlsMode == model.TLSModeStartTLS {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", addr, err)
		}
		return conn.Close()
	}

	tlsDialer := tls.Dialer{
		NetDialer: &dialer,
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: !rejectUnauthorized,
		},
	}
	conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("TLS handshake with %s: %w", addr, err)
	}
	return conn.Close()
}
