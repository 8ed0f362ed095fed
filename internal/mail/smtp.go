package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	netmail "net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	gomail "github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/hourinbox/webmail/internal/model"
)

// SendMail submits a message over SMTP and appends a copy to the Sent
// folder. Inline data-URL images in the HTML body are extracted to
// cid attachments before the message is built. The Sent copy is best
// effort: if it fails the message is already on the wire, so the
// failure is logged and the send still reports success.
//
// Returns the generated Message-ID including angle brackets.
func (g *Gateway) SendMail(
	ctx context.Context, acct Account, password string, opts SendOptions,
) (string, error) {
	html, inline := ExtractInlineImages(opts.HTML)
	opts.HTML = html
	opts.Attachments = append(opts.Attachments, inline...)

	recipients, err := collectRecipients(opts)
	if err != nil {
		return "", err
	}
	if len(recipients) == 0 {
		return "", fmt.Errorf("no recipients")
	}

	messageID := generateMessageID(acct.Email)
	raw, err := buildOutgoing(acct.Email, messageID, opts)
	if err != nil {
		return "", err
	}

	if err := g.submit(ctx, acct, password, recipients, raw); err != nil {
		return "", err
	}

	if err := g.appendToSent(ctx, acct, password, raw); err != nil {
		g.log.Warn().Err(err).Str("email", acct.Email).
			Msg("message sent but Sent copy failed")
	}

	return "<" + messageID + ">", nil
}

// submit performs the SMTP dialog against the account's submission
// server.
func (g *Gateway) submit(
	ctx context.Context, acct Account, password string, recipients []string, raw []byte,
) error {
	addr := net.JoinHostPort(acct.SMTPHost, strconv.Itoa(acct.SMTPPort))
	tlsConfig := &tls.Config{
		ServerName:         acct.SMTPHost,
		InsecureSkipVerify: !acct.RejectUnauthorized,
	}
	dialer := net.Dialer{Timeout: g.connectTimeout}

	var client *smtp.Client
	if acct.TLSMode == model.TLSModeStartTLS {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return upstream("connecting to SMTP "+addr, err)
		}
		client, err = smtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			_ = conn.Close()
			return upstream("starting TLS with SMTP "+addr, err)
		}
	} else {
		conn, err := tls.DialWithDialer(&dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return upstream("connecting to SMTP "+addr, err)
		}
		client = smtp.NewClient(conn)
	}
	defer client.Close()

	if err := client.Auth(sasl.NewPlainClient("", acct.Email, password)); err != nil {
		return &AuthError{
			Message: fmt.Sprintf("SMTP authentication failed for %s: %v", acct.Email, err),
		}
	}

	if err := client.Mail(acct.Email, nil); err != nil {
		return upstream("SMTP MAIL FROM", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt, nil); err != nil {
			return upstream("SMTP RCPT TO "+rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return upstream("SMTP DATA", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return upstream("writing message data", err)
	}
	if err := w.Close(); err != nil {
		return upstream("finalizing message data", err)
	}

	return client.Quit()
}

// appendToSent stores a copy of a sent message in the Sent folder.
func (g *Gateway) appendToSent(
	ctx context.Context, acct Account, password string, raw []byte,
) error {
	client, err := g.connect(ctx, acct, password)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	sent, err := findSpecialUse(client, imap.MailboxAttrSent, "Sent")
	if err != nil {
		return err
	}
	if sent == "" {
		sent = "Sent"
	}

	appendCmd := client.Append(sent, int64(len(raw)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagSeen},
		Time:  time.Now(),
	})
	if _, err := appendCmd.Write(raw); err != nil {
		return upstream("writing Sent copy", err)
	}
	if err := appendCmd.Close(); err != nil {
		return upstream("writing Sent copy", err)
	}
	if _, err := appendCmd.Wait(); err != nil {
		return upstream("appending Sent copy", err)
	}
	return nil
}

// collectRecipients flattens To, Cc, and Bcc into the RCPT list.
func collectRecipients(opts SendOptions) ([]string, error) {
	var recipients []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"to", opts.To},
		{"cc", opts.Cc},
		{"bcc", opts.Bcc},
	} {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		addrs, err := netmail.ParseAddressList(field.value)
		if err != nil {
			return nil, fmt.Errorf("parsing %s addresses: %w", field.name, err)
		}
		for _, a := range addrs {
			recipients = append(recipients, a.Address)
		}
	}
	return recipients, nil
}

// generateMessageID returns a fresh Message-ID without angle brackets,
// scoped to the sender's domain.
func generateMessageID(email string) string {
	domain := "localhost"
	if at := strings.LastIndex(email, "@"); at >= 0 {
		domain = email[at+1:]
	}
	return uuid.NewString() + "@" + domain
}

// buildOutgoing renders an outgoing message: multipart/mixed with an
// inline text+HTML alternative followed by attachments. Bcc recipients
// are delivered via RCPT only and never appear in the headers.
func buildOutgoing(from, messageID string, opts SendOptions) ([]byte, error) {
	var h gomail.Header
	h.SetDate(time.Now())
	h.SetSubject(opts.Subject)
	h.SetMessageID(messageID)
	h.SetAddressList("From", []*gomail.Address{{Address: from}})

	for _, field := range []struct {
		key   string
		value string
	}{
		{"To", opts.To},
		{"Cc", opts.Cc},
		{"Reply-To", opts.ReplyTo},
	} {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		addrs, err := netmail.ParseAddressList(field.value)
		if err != nil {
			return nil, fmt.Errorf("parsing %s addresses: %w", strings.ToLower(field.key), err)
		}
		h.SetAddressList(field.key, convertToHeaderAddresses(addrs))
	}

	if opts.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{strings.Trim(opts.InReplyTo, "<>")})
	}

	var buf bytes.Buffer
	mw, err := gomail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("creating inline part: %w", err)
	}
	if opts.Text != "" {
		var th gomail.InlineHeader
		th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		pw, err := iw.CreatePart(th)
		if err != nil {
			return nil, fmt.Errorf("creating text part: %w", err)
		}
		if _, err := pw.Write([]byte(opts.Text)); err != nil {
			return nil, fmt.Errorf("writing text part: %w", err)
		}
		_ = pw.Close()
	}
	if opts.HTML != "" {
		var th gomail.InlineHeader
		th.SetContentType("text/html", map[string]string{"charset": "utf-8"})
		pw, err := iw.CreatePart(th)
		if err != nil {
			return nil, fmt.Errorf("creating html part: %w", err)
		}
		if _, err := pw.Write([]byte(opts.HTML)); err != nil {
			return nil, fmt.Errorf("writing html part: %w", err)
		}
		_ = pw.Close()
	}
	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("closing inline part: %w", err)
	}

	for _, att := range opts.Attachments {
		var ah gomail.AttachmentHeader
		ah.SetFilename(att.Filename)
		if att.ContentType != "" {
			ah.SetContentType(att.ContentType, nil)
		}
		if att.ContentID != "" {
			ah.Set("Content-ID", "<"+att.ContentID+">")
		}

		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("creating attachment %s: %w", att.Filename, err)
		}
		if _, err := aw.Write(att.Content); err != nil {
			return nil, fmt.Errorf("writing attachment %s: %w", att.Filename, err)
		}
		_ = aw.Close()
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing message: %w", err)
	}

	return buf.Bytes(), nil
}
