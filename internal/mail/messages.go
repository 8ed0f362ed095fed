package mail

import (
	"context"
	"sort"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// ListMessages returns one page of a folder, newest first. Pages are
// 1-based; a page past the end returns an empty list with the folder's
// true total so clients can clamp their pagers.
func (g *Gateway) ListMessages(
	ctx context.Context, acct Account, password, folder string, page, limit int,
) (*MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	unlock := g.locks.acquire(acct.Email, folder)
	defer unlock()

	client, err := g.connect(ctx, acct, password)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	sel, err := client.Select(folder, nil).Wait()
	if err != nil {
		return nil, upstream("selecting "+folder, err)
	}

	total := int(sel.NumMessages)
	result := &MessagePage{Messages: []MessageSummary{}, Total: total}
	if total == 0 {
		return result, nil
	}

	start, end := pageWindow(total, page, limit)
	if start > end {
		return result, nil
	}

	var seqSet imap.SeqSet
	seqSet.AddRange(uint32(start), uint32(end))

	fetchOpts := &imap.FetchOptions{
		Envelope: true,
		Flags:    true,
		UID:      true,
	}

	fetchCmd := client.Fetch(seqSet, fetchOpts)
	defer fetchCmd.Close()

	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		result.Messages = append(result.Messages, summaryFromBuffer(buf))
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, upstream("fetching messages in "+folder, err)
	}

	// Servers return ascending sequence order; the UI wants newest
	// first.
	sort.SliceStable(result.Messages, func(i, j int) bool {
		return result.Messages[i].Seq > result.Messages[j].Seq
	})

	return result, nil
}

// pageWindow maps a 1-based page of size limit onto an ascending
// sequence-number range, counting pages from the newest message down.
// Both bounds clamp to 1; a fully out-of-range page yields start > end.
func pageWindow(total, page, limit int) (start, end int) {
	end = total - (page-1)*limit
	start = end - limit + 1
	if start < 1 {
		start = 1
	}
	return start, end
}

// summaryFromBuffer extracts a MessageSummary from a fetched message.
func summaryFromBuffer(buf *imapclient.FetchMessageBuffer) MessageSummary {
	sum := MessageSummary{
		UID:   uint32(buf.UID),
		Seq:   buf.SeqNum,
		Flags: []string{},
	}

	if buf.Envelope != nil {
		sum.MessageID = buf.Envelope.MessageID
		sum.Subject = buf.Envelope.Subject
		sum.Date = buf.Envelope.Date
		sum.From = convertAddresses(buf.Envelope.From)
		sum.To = convertAddresses(buf.Envelope.To)
	}

	for _, flag := range buf.Flags {
		sum.Flags = append(sum.Flags, string(flag))
	}

	return sum
}

// convertAddresses normalizes envelope addresses, dropping entries
// without a usable mailbox. Group syntax markers arrive as addresses
// with an empty host and are skipped.
func convertAddresses(addrs []imap.Address) []Address {
	out := make([]Address, 0, len(addrs))
	for _, a := range addrs {
		if a.Mailbox == "" || a.Host == "" {
			continue
		}
		out = append(out, Address{Name: a.Name, Address: a.Addr()})
	}
	return out
}
