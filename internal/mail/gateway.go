// Package mail is the gateway between the HTTP surface and upstream
// IMAP/SMTP servers. Every operation opens a fresh, short-lived
// connection, performs its work, and logs out; there is no connection
// pool to leak half-authenticated state between accounts. Operations
// that mutate a folder serialize on a per-(account, folder) lock.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/rs/zerolog"

	"github.com/hourinbox/webmail/internal/model"
)

// Gateway executes mailbox operations against upstream servers.
type Gateway struct {
	connectTimeout time.Duration
	locks          *lockTable
	log            zerolog.Logger
}

// NewGateway creates a gateway with the given upstream connect timeout.
func NewGateway(connectTimeout time.Duration, log zerolog.Logger) *Gateway {
	return &Gateway{
		connectTimeout: connectTimeout,
		locks:          newLockTable(),
		log:            log,
	}
}

// connect dials the account's IMAP server, upgrades to TLS according to
// the organization's TLS mode, and authenticates. The caller owns the
// returned client and must call Logout.
func (g *Gateway) connect(
	ctx context.Context, acct Account, password string,
) (*imapclient.Client, error) {
	addr := net.JoinHostPort(acct.IMAPHost, strconv.Itoa(acct.IMAPPort))
	tlsConfig := &tls.Config{
		ServerName:         acct.IMAPHost,
		InsecureSkipVerify: !acct.RejectUnauthorized,
	}

	dialer := net.Dialer{Timeout: g.connectTimeout}

	var client *imapclient.Client
	switch acct.TLSMode {
	case model.TLSModeStartTLS:
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, upstream("connecting to IMAP "+addr, err)
		}
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{
			TLSConfig: tlsConfig,
		})
		if err != nil {
			_ = conn.Close()
			return nil, upstream("starting TLS with IMAP "+addr, err)
		}
	default:
		tlsDialer := tls.Dialer{NetDialer: &dialer, Config: tlsConfig}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, upstream("connecting to IMAP "+addr, err)
		}
		client = imapclient.New(conn, nil)
	}

	if err := client.Login(acct.Email, password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			Message: fmt.Sprintf("authentication failed for %s: %v", acct.Email, err),
		}
	}

	return client, nil
}

// VerifyCredentials authenticates against the IMAP server and logs out
// immediately. Used by login before any session is created.
func (g *Gateway) VerifyCredentials(
	ctx context.Context, acct Account, password string,
) error {
	client, err := g.connect(ctx, acct, password)
	if err != nil {
		return err
	}
	_ = client.Logout().Wait()
	return nil
}
