package mail

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message/mail"
)

// GetMessage fetches and parses one message. A nil result without
// error means the UID does not exist in the folder, typically because
// the message was moved or expunged after the client cached its UID.
func (g *Gateway) GetMessage(
	ctx context.Context, acct Account, password, folder string, uid uint32,
) (*MessageFull, error) {
	unlock := g.locks.acquire(acct.Email, folder)
	defer unlock()

	client, err := g.connect(ctx, acct, password)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return nil, upstream("selecting "+folder, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, nil
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, upstream("collecting message", err)
	}

	full := &MessageFull{
		MessageSummary: summaryFromBuffer(buf),
		Attachments:    []Attachment{},
	}
	if buf.Envelope != nil {
		full.Cc = convertAddresses(buf.Envelope.Cc)
	}

	if raw := buf.FindBodySection(bodySection); raw != nil {
		body := parseBody(raw)
		full.Text = body.text
		full.HTML = body.html
		full.Attachments = body.attachments
		full.Preview = preview(body.text)
	}

	if err := fetchCmd.Close(); err != nil {
		return full, upstream("fetching message", err)
	}

	return full, nil
}

// GetAttachment fetches a message and returns the attachment matching
// filename. ErrNotFound covers both a missing message and a missing
// attachment.
func (g *Gateway) GetAttachment(
	ctx context.Context,
	acct Account,
	password, folder string,
	uid uint32,
	filename string,
) (*AttachmentContent, error) {
	unlock := g.locks.acquire(acct.Email, folder)
	defer unlock()

	client, err := g.connect(ctx, acct, password)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return nil, upstream("selecting "+folder, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(uidSet, &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, ErrNotFound
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, upstream("collecting message", err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, ErrNotFound
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, upstream("parsing message", err)
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}

		name, _ := h.Filename()
		if name != filename {
			continue
		}

		contentType, _, _ := h.ContentType()
		content, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, upstream("reading attachment", err)
		}
		return &AttachmentContent{
			Filename:    name,
			ContentType: contentType,
			Content:     content,
		}, nil
	}

	return nil, ErrNotFound
}

// ResolveMessageID searches a folder for a Message-ID header value and
// returns the matching UID, or 0 when no message matches. Some servers
// index the header with the surrounding angle brackets and some
// without, so both spellings are tried.
func (g *Gateway) ResolveMessageID(
	ctx context.Context, acct Account, password, folder, messageID string,
) (uint32, error) {
	client, err := g.connect(ctx, acct, password)
	if err != nil {
		return 0, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return 0, upstream("selecting "+folder, err)
	}

	bare := strings.Trim(messageID, "<>")
	for _, candidate := range []string{"<" + bare + ">", bare} {
		criteria := &imap.SearchCriteria{
			Header: []imap.SearchCriteriaHeaderField{
				{Key: "Message-Id", Value: candidate},
			},
		}

		data, err := client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return 0, upstream("searching by message id", err)
		}

		if uids := data.AllUIDs(); len(uids) > 0 {
			return uint32(uids[0]), nil
		}
	}

	return 0, nil
}

// parsedBody holds the result of a full MIME parse.
type parsedBody struct {
	text        string
	html        string
	attachments []Attachment
}

// parseBody parses a raw RFC 5322 message. An unparseable payload is
// treated as plain text instead of failing the whole fetch.
func parseBody(raw []byte) parsedBody {
	body := parsedBody{attachments: []Attachment{}}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		body.text = string(raw)
		return body
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			content, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				if body.text == "" {
					body.text = string(content)
				}
			case strings.HasPrefix(contentType, "text/html"):
				if body.html == "" {
					body.html = string(content)
				}
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			content, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			body.attachments = append(body.attachments, Attachment{
				Filename:    filename,
				Size:        int64(len(content)),
				ContentType: contentType,
			})
		}
	}

	return body
}

const previewLength = 200

// preview returns the first previewLength runes of text with runs of
// whitespace collapsed.
func preview(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) > previewLength {
		runes = runes[:previewLength]
	}
	return string(runes)
}
