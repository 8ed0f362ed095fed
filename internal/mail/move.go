package mail

import (
	"context"

	"github.com/emersion/go-imap/v2"
)

// MoveMessage moves one message from folder to target. The message
// keeps its content but gets a new UID in the target folder.
func (g *Gateway) MoveMessage(
	ctx context.Context, acct Account, password, folder string, uid uint32, target string,
) error {
	unlock := g.locks.acquire(acct.Email, folder)
	defer unlock()

	client, err := g.connect(ctx, acct, password)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return upstream("selecting "+folder, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))
	if _, err := client.Move(uidSet, target).Wait(); err != nil {
		return upstream("moving message to "+target, err)
	}
	return nil
}

// DeleteMessage permanently removes a message: flag deleted, then
// expunge. Callers decide whether a "delete" should instead be a move
// to Trash; this is the unrecoverable path.
func (g *Gateway) DeleteMessage(
	ctx context.Context, acct Account, password, folder string, uid uint32,
) error {
	unlock := g.locks.acquire(acct.Email, folder)
	defer unlock()

	client, err := g.connect(ctx, acct, password)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return upstream("selecting "+folder, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))
	storeCmd := client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return upstream("flagging message deleted", err)
	}

	if err := client.Expunge().Close(); err != nil {
		return upstream("expunging "+folder, err)
	}
	return nil
}

// SpecialUseFolder resolves the mailbox advertising the given role,
// with a named fallback when the server does not tag it. An empty
// result means the account has no such folder.
func (g *Gateway) SpecialUseFolder(
	ctx context.Context, acct Account, password string, attr imap.MailboxAttr, fallback string,
) (string, error) {
	client, err := g.connect(ctx, acct, password)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Logout().Wait() }()

	return findSpecialUse(client, attr, fallback)
}
