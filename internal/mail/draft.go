package mail

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	gomail "github.com/emersion/go-message/mail"
)

// AppendDraft writes a draft into the Drafts folder and returns its new
// UID and the folder it landed in. When replaceUID is non-zero the
// previous autosave revision is deleted first, so the folder holds one
// revision per compose window instead of one per keystroke.
func (g *Gateway) AppendDraft(
	ctx context.Context, acct Account, password string, draft DraftOptions, replaceUID uint32,
) (uint32, string, error) {
	raw, err := BuildDraft(acct.Email, draft)
	if err != nil {
		return 0, "", err
	}

	client, err := g.connect(ctx, acct, password)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = client.Logout().Wait() }()

	drafts, err := findSpecialUse(client, imap.MailboxAttrDrafts, "Drafts")
	if err != nil {
		return 0, "", err
	}
	if drafts == "" {
		drafts = "Drafts"
	}

	unlock := g.locks.acquire(acct.Email, drafts)
	defer unlock()

	if replaceUID != 0 {
		if _, err := client.Select(drafts, nil).Wait(); err != nil {
			return 0, "", upstream("selecting "+drafts, err)
		}

		uidSet := imap.UIDSetNum(imap.UID(replaceUID))
		storeCmd := client.Store(uidSet, &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagDeleted},
		}, nil)
		if err := storeCmd.Close(); err != nil {
			return 0, "", upstream("flagging old draft deleted", err)
		}
		if err := client.Expunge().Close(); err != nil {
			return 0, "", upstream("expunging old draft", err)
		}
	}

	appendCmd := client.Append(drafts, int64(len(raw)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagDraft, imap.FlagSeen},
		Time:  time.Now(),
	})
	if _, err := appendCmd.Write(raw); err != nil {
		return 0, "", upstream("writing draft", err)
	}
	if err := appendCmd.Close(); err != nil {
		return 0, "", upstream("writing draft", err)
	}

	data, err := appendCmd.Wait()
	if err != nil {
		return 0, "", upstream("appending draft", err)
	}

	// Without UIDPLUS the server does not report the appended UID.
	var uid uint32
	if data != nil {
		uid = uint32(data.UID)
	}
	return uid, drafts, nil
}

// GetDraft reads a draft back for editing. The HTML body is returned
// as stored; drafts written by AppendDraft always carry a single HTML
// part.
func (g *Gateway) GetDraft(
	ctx context.Context, acct Account, password, folder string, uid uint32,
) (*DraftContent, error) {
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
		return nil, upstream("collecting draft", err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, ErrNotFound
	}

	return parseDraft(raw)
}

// parseDraft extracts the editable fields from a stored draft.
func parseDraft(raw []byte) (*DraftContent, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing draft: %w", err)
	}
	defer mr.Close()

	draft := &DraftContent{
		To:  headerAddressList(mr.Header, "To"),
		Cc:  headerAddressList(mr.Header, "Cc"),
		Bcc: headerAddressList(mr.Header, "Bcc"),
	}
	draft.Subject, _ = mr.Header.Subject()

	body := parseBody(raw)
	draft.HTML = body.html
	if draft.HTML == "" {
		draft.HTML = body.text
	}

	return draft, nil
}

// headerAddressList renders a header address list back to the
// comma-separated form the compose window edits.
func headerAddressList(h gomail.Header, key string) string {
	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		return ""
	}

	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Name != "" {
			parts = append(parts, a.String())
		} else {
			parts = append(parts, a.Address)
		}
	}
	return strings.Join(parts, ", ")
}

// BuildDraft renders a compose window's state into a single-part HTML
// message suitable for APPEND. Bcc stays in the stored draft; it is
// only stripped when the message is actually sent.
func BuildDraft(from string, draft DraftOptions) ([]byte, error) {
	var h gomail.Header
	h.SetDate(time.Now())
	h.SetSubject(draft.Subject)
	h.SetAddressList("From", []*gomail.Address{{Address: from}})

	for _, field := range []struct {
		key   string
		value string
	}{
		{"To", draft.To},
		{"Cc", draft.Cc},
		{"Bcc", draft.Bcc},
	} {
		if field.value == "" {
			continue
		}
		addrs, err := mail.ParseAddressList(field.value)
		if err != nil {
			return nil, fmt.Errorf("parsing %s addresses: %w", strings.ToLower(field.key), err)
		}
		h.SetAddressList(field.key, convertToHeaderAddresses(addrs))
	}

	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := gomail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating draft writer: %w", err)
	}
	if _, err := w.Write([]byte(draft.HTML)); err != nil {
		return nil, fmt.Errorf("writing draft body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing draft: %w", err)
	}

	return buf.Bytes(), nil
}

func convertToHeaderAddresses(addrs []*mail.Address) []*gomail.Address {
	out := make([]*gomail.Address, len(addrs))
	for i, a := range addrs {
		out[i] = &gomail.Address{Name: a.Name, Address: a.Address}
	}
	return out
}
