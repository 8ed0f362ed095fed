package mail

import (
	"context"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// specialUseInbox marks INBOX, which RFC 6154 has no attribute for.
const specialUseInbox = "\\Inbox"

// specialUseAttrs are the role attributes surfaced to clients, checked
// in a fixed order so a mailbox advertising several yields a stable
// result.
var specialUseAttrs = []imap.MailboxAttr{
	imap.MailboxAttrSent,
	imap.MailboxAttrDrafts,
	imap.MailboxAttrTrash,
	imap.MailboxAttrJunk,
	imap.MailboxAttrArchive,
	imap.MailboxAttrAll,
	imap.MailboxAttrFlagged,
}

// ListFolders returns every selectable mailbox with message and unseen
// counts.
func (g *Gateway) ListFolders(
	ctx context.Context, acct Account, password string,
) ([]Folder, error) {
	client, err := g.connect(ctx, acct, password)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	return listFolders(client)
}

// listFolders lists mailboxes on an already-authenticated client.
func listFolders(client *imapclient.Client) ([]Folder, error) {
	boxes, err := client.List("", "*", nil).Collect()
	if err != nil {
		return nil, upstream("listing folders", err)
	}

	statusOpts := &imap.StatusOptions{NumMessages: true, NumUnseen: true}

	folders := make([]Folder, 0, len(boxes))
	for _, box := range boxes {
		if hasAttr(box.Attrs, imap.MailboxAttrNoSelect) {
			continue
		}

		folder := Folder{
			Path:       box.Mailbox,
			Name:       folderName(box.Mailbox, box.Delim),
			SpecialUse: specialUse(box.Mailbox, box.Attrs),
		}

		status, err := client.Status(box.Mailbox, statusOpts).Wait()
		if err != nil {
			// Some servers refuse STATUS on shared or virtual folders;
			// list them with zero counts rather than failing the whole
			// listing.
			folders = append(folders, folder)
			continue
		}
		if status.NumMessages != nil {
			folder.Messages = *status.NumMessages
		}
		if status.NumUnseen != nil {
			folder.Unseen = *status.NumUnseen
		}
		folders = append(folders, folder)
	}

	return folders, nil
}

// findSpecialUse locates the mailbox advertising the given role
// attribute on an already-authenticated client. Falls back to a
// case-insensitive name match, then to fallback. Returns "" when
// neither the role nor the fallback mailbox exists.
func findSpecialUse(
	client *imapclient.Client, attr imap.MailboxAttr, fallback string,
) (string, error) {
	boxes, err := client.List("", "*", nil).Collect()
	if err != nil {
		return "", upstream("listing folders", err)
	}

	for _, box := range boxes {
		if hasAttr(box.Attrs, attr) {
			return box.Mailbox, nil
		}
	}
	for _, box := range boxes {
		if strings.EqualFold(folderName(box.Mailbox, box.Delim), fallback) {
			return box.Mailbox, nil
		}
	}
	return "", nil
}

func hasAttr(attrs []imap.MailboxAttr, want imap.MailboxAttr) bool {
	for _, a := range attrs {
		if a == want {
			return true
		}
	}
	return false
}

func specialUse(mailbox string, attrs []imap.MailboxAttr) string {
	if strings.EqualFold(mailbox, "INBOX") {
		return specialUseInbox
	}
	for _, want := range specialUseAttrs {
		if hasAttr(attrs, want) {
			return string(want)
		}
	}
	return ""
}

// folderName returns the last path segment of a mailbox name.
func folderName(mailbox string, delim rune) string {
	if delim == 0 {
		return mailbox
	}
	parts := strings.Split(mailbox, string(delim))
	return parts[len(parts)-1]
}
