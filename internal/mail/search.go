package mail

import (
	"context"
	"sort"

	"github.com/emersion/go-imap/v2"
)

// SearchMessages runs a structured search in one folder and returns up
// to limit matches, newest first. Total counts every match, not just
// the returned page.
func (g *Gateway) SearchMessages(
	ctx context.Context, acct Account, password, folder string, query SearchQuery, limit int,
) (*MessagePage, error) {
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

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return nil, upstream("selecting "+folder, err)
	}

	data, err := client.UIDSearch(buildCriteria(query), nil).Wait()
	if err != nil {
		return nil, upstream("searching "+folder, err)
	}

	uids := data.AllUIDs()
	result := &MessagePage{Messages: []MessageSummary{}, Total: len(uids)}
	if len(uids) == 0 {
		return result, nil
	}

	// Highest UIDs are the most recently delivered; keep only the
	// newest limit matches.
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if len(uids) > limit {
		uids = uids[:limit]
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope: true,
		Flags:    true,
		UID:      true,
	})
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
		return nil, upstream("fetching search results", err)
	}

	sort.SliceStable(result.Messages, func(i, j int) bool {
		return result.Messages[i].Date.After(result.Messages[j].Date)
	})

	return result, nil
}

// buildCriteria translates a SearchQuery into IMAP search criteria.
// All set fields combine conjunctively.
func buildCriteria(q SearchQuery) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{}

	if q.Text != "" {
		criteria.Body = append(criteria.Body, q.Text)
	}
	if q.From != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key: "From", Value: q.From,
		})
	}
	if q.To != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key: "To", Value: q.To,
		})
	}
	if q.Subject != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key: "Subject", Value: q.Subject,
		})
	}
	if !q.Since.IsZero() {
		criteria.Since = q.Since
	}
	if !q.Before.IsZero() {
		criteria.Before = q.Before
	}
	if q.Larger > 0 {
		criteria.Larger = q.Larger
	}
	if q.Smaller > 0 {
		criteria.Smaller = q.Smaller
	}
	if q.Flagged {
		criteria.Flag = append(criteria.Flag, imap.FlagFlagged)
	}

	return criteria
}
