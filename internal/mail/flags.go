package mail

import (
	"context"

	"github.com/emersion/go-imap/v2"
)

// UpdateFlags adds and removes flags on a set of messages in one
// connection. Single-message and batch updates share this path; the
// batch case costs one extra STORE, not one per message.
func (g *Gateway) UpdateFlags(
	ctx context.Context,
	acct Account,
	password, folder string,
	uids []uint32,
	add, remove []string,
) error {
	if len(uids) == 0 || (len(add) == 0 && len(remove) == 0) {
		return nil
	}

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

	uidSet := toUIDSet(uids)

	if len(add) > 0 {
		storeCmd := client.Store(uidSet, &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  toFlags(add),
		}, nil)
		if err := storeCmd.Close(); err != nil {
			return upstream("adding flags", err)
		}
	}

	if len(remove) > 0 {
		storeCmd := client.Store(uidSet, &imap.StoreFlags{
			Op:     imap.StoreFlagsDel,
			Silent: true,
			Flags:  toFlags(remove),
		}, nil)
		if err := storeCmd.Close(); err != nil {
			return upstream("removing flags", err)
		}
	}

	return nil
}

func toUIDSet(uids []uint32) imap.UIDSet {
	converted := make([]imap.UID, len(uids))
	for i, uid := range uids {
		converted[i] = imap.UID(uid)
	}
	return imap.UIDSetNum(converted...)
}

func toFlags(flags []string) []imap.Flag {
	converted := make([]imap.Flag, len(flags))
	for i, f := range flags {
		converted[i] = imap.Flag(f)
	}
	return converted
}
