package mail

import (
	"context"
	"sort"
	"strings"

	"github.com/emersion/go-imap/v2"
	"golang.org/x/sync/errgroup"
)

// collectScanDepth bounds how many recent messages per folder feed the
// contact suggestions.
const collectScanDepth = 200

// CollectAddresses harvests contact suggestions from recent mail:
// recipients of the Sent folder plus senders in INBOX, scanned
// concurrently on separate connections. Duplicate addresses collapse
// case-insensitively, preferring whichever occurrence carries a real
// display name.
func (g *Gateway) CollectAddresses(
	ctx context.Context, acct Account, password string,
) ([]Address, error) {
	client, err := g.connect(ctx, acct, password)
	if err != nil {
		return nil, err
	}
	sentFolder, err := findSpecialUse(client, imap.MailboxAttrSent, "Sent")
	_ = client.Logout().Wait()
	if err != nil {
		return nil, err
	}

	var sentAddrs, inboxAddrs []Address
	eg, ctx := errgroup.WithContext(ctx)
	if sentFolder != "" {
		eg.Go(func() error {
			addrs, err := g.collectFolder(ctx, acct, password, sentFolder, false)
			sentAddrs = addrs
			return err
		})
	}
	eg.Go(func() error {
		addrs, err := g.collectFolder(ctx, acct, password, "INBOX", true)
		inboxAddrs = addrs
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]Address)
	for _, a := range append(sentAddrs, inboxAddrs...) {
		key := strings.ToLower(a.Address)
		existing, ok := merged[key]
		if !ok || (existing.Name == "" && a.Name != "") {
			merged[key] = a
		}
	}
	delete(merged, strings.ToLower(acct.Email))

	out := make([]Address, 0, len(merged))
	for _, a := range merged {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Address) < strings.ToLower(out[j].Address)
	})
	return out, nil
}

// collectFolder scans the newest collectScanDepth messages of one
// folder. fromSide selects whether senders (From) or recipients
// (To, Cc) are harvested.
func (g *Gateway) collectFolder(
	ctx context.Context, acct Account, password, folder string, fromSide bool,
) ([]Address, error) {
	unlock := g.locks.acquire(acct.Email, folder)
	defer unlock()

	client, err := g.connect(ctx, acct, password)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	sel, err := client.Select(folder, nil).Wait()
	if err != nil {
		// A missing or unselectable folder contributes nothing.
		return nil, nil
	}

	total := int(sel.NumMessages)
	if total == 0 {
		return nil, nil
	}

	start := total - collectScanDepth + 1
	if start < 1 {
		start = 1
	}

	var seqSet imap.SeqSet
	seqSet.AddRange(uint32(start), uint32(total))

	fetchCmd := client.Fetch(seqSet, &imap.FetchOptions{Envelope: true})
	defer fetchCmd.Close()

	var addrs []Address
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil || buf.Envelope == nil {
			continue
		}

		if fromSide {
			addrs = append(addrs, convertAddresses(buf.Envelope.From)...)
		} else {
			addrs = append(addrs, convertAddresses(buf.Envelope.To)...)
			addrs = append(addrs, convertAddresses(buf.Envelope.Cc)...)
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, upstream("fetching envelopes in "+folder, err)
	}
	return addrs, nil
}
