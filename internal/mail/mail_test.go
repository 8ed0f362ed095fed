package mail

import (
	"strings"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageWindow(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		page, limit int
		start, end  int
	}{
		{"first page of large folder", 1000, 1, 50, 951, 1000},
		{"second page continues below", 1000, 2, 50, 901, 950},
		{"last full page", 100, 2, 50, 1, 50},
		{"partial last page clamps to 1", 120, 3, 50, 1, 20},
		{"single page folder", 7, 1, 50, 1, 7},
		{"page past the end is empty", 10, 3, 50, 1, -90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := pageWindow(tt.total, tt.page, tt.limit)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestPageWindowPagesNeverOverlap(t *testing.T) {
	const total, limit = 1003, 50

	seen := make(map[int]int)
	for page := 1; ; page++ {
		start, end := pageWindow(total, page, limit)
		if start > end {
			break
		}
		for seq := start; seq <= end; seq++ {
			seen[seq]++
		}
	}

	require.Len(t, seen, total, "every message appears on exactly one page")
	for seq, count := range seen {
		require.Equal(t, 1, count, "seq %d appears %d times", seq, count)
	}
}

func TestConvertAddressesSkipsGroupMarkers(t *testing.T) {
	addrs := convertAddresses([]imap.Address{
		{Name: "Ada", Mailbox: "ada", Host: "example.com"},
		{Name: "undisclosed-recipients", Mailbox: "", Host: ""},
		{Mailbox: "bob", Host: "example.org"},
	})

	require.Len(t, addrs, 2)
	assert.Equal(t, Address{Name: "Ada", Address: "ada@example.com"}, addrs[0])
	assert.Equal(t, Address{Name: "", Address: "bob@example.org"}, addrs[1])
}

func TestBuildCriteria(t *testing.T) {
	q := SearchQuery{
		Text:    "invoice",
		From:    "billing@example.com",
		Subject: "q3",
		Larger:  1024,
		Flagged: true,
	}
	c := buildCriteria(q)

	assert.Equal(t, []string{"invoice"}, c.Body)
	assert.Contains(t, c.Header, imap.SearchCriteriaHeaderField{Key: "From", Value: "billing@example.com"})
	assert.Contains(t, c.Header, imap.SearchCriteriaHeaderField{Key: "Subject", Value: "q3"})
	assert.NotContains(t, c.Header, imap.SearchCriteriaHeaderField{Key: "To", Value: ""})
	assert.Equal(t, int64(1024), c.Larger)
	assert.Equal(t, []imap.Flag{imap.FlagFlagged}, c.Flag)
	assert.True(t, c.Since.IsZero())
}

func TestBuildCriteriaEmptyQuery(t *testing.T) {
	c := buildCriteria(SearchQuery{})
	assert.Empty(t, c.Body)
	assert.Empty(t, c.Header)
	assert.Empty(t, c.Flag)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello world", preview("  hello\n\n  world \t"))
	assert.Equal(t, "", preview(""))

	long := strings.Repeat("word ", 100)
	got := preview(long)
	assert.Len(t, []rune(got), previewLength)
}

func TestFolderName(t *testing.T) {
	assert.Equal(t, "Receipts", folderName("INBOX/Work/Receipts", '/'))
	assert.Equal(t, "INBOX", folderName("INBOX", '/'))
	assert.Equal(t, "A/B", folderName("A/B", 0))
}

func TestSpecialUse(t *testing.T) {
	assert.Equal(t, "\\Inbox", specialUse("INBOX", nil))
	assert.Equal(t, "\\Inbox", specialUse("inbox", nil))
	assert.Equal(t, string(imap.MailboxAttrSent),
		specialUse("Sent Mail", []imap.MailboxAttr{imap.MailboxAttrSent}))
	assert.Equal(t, "",
		specialUse("Receipts", []imap.MailboxAttr{imap.MailboxAttrSubscribed}))
}

func TestExtractInlineImages(t *testing.T) {
	// "iVBORw0KGgo=" is a valid base64 fragment of a PNG header.
	html := `<p>one</p><img src="data:image/png;base64,iVBORw0KGgo=">` +
		`<img src="data:image/jpeg;base64,/9j/4AAQ">`

	rewritten, attachments := ExtractInlineImages(html)

	require.Len(t, attachments, 2)
	assert.Equal(t, "image/png", attachments[0].ContentType)
	assert.Equal(t, "inline-1.png", attachments[0].Filename)
	assert.Equal(t, "inline-2.jpg", attachments[1].Filename)
	assert.NotEmpty(t, attachments[0].ContentID)

	assert.NotContains(t, rewritten, "data:image")
	assert.Contains(t, rewritten, "cid:"+attachments[0].ContentID)
	assert.Contains(t, rewritten, "cid:"+attachments[1].ContentID)
}

func TestExtractInlineImagesDeduplicates(t *testing.T) {
	html := `<img src="data:image/png;base64,iVBORw0KGgo=">` +
		`<img src="data:image/png;base64,iVBORw0KGgo=">`

	rewritten, attachments := ExtractInlineImages(html)

	require.Len(t, attachments, 1, "identical bytes share one attachment")
	assert.Equal(t, 2, strings.Count(rewritten, "cid:"+attachments[0].ContentID))
}

func TestExtractInlineImagesNoDataURLs(t *testing.T) {
	html := `<p>plain</p><img src="https://example.com/logo.png">`

	rewritten, attachments := ExtractInlineImages(html)

	assert.Equal(t, html, rewritten)
	assert.Empty(t, attachments)
}

func TestDraftRoundTrip(t *testing.T) {
	opts := DraftOptions{
		To:      "ada@example.com, Bob <bob@example.org>",
		Cc:      "carol@example.net",
		Bcc:     "dan@example.io",
		Subject: "Quarterly numbers",
		HTML:    "<p>Draft body with <b>markup</b></p>",
	}

	raw, err := BuildDraft("me@example.com", opts)
	require.NoError(t, err)

	draft, err := parseDraft(raw)
	require.NoError(t, err)

	assert.Contains(t, draft.To, "ada@example.com")
	assert.Contains(t, draft.To, "bob@example.org")
	assert.Equal(t, "carol@example.net", draft.Cc)
	assert.Equal(t, "dan@example.io", draft.Bcc, "bcc survives in stored drafts")
	assert.Equal(t, "Quarterly numbers", draft.Subject)
	assert.Equal(t, opts.HTML, draft.HTML)
}

func TestBuildDraftRejectsBadAddresses(t *testing.T) {
	_, err := BuildDraft("me@example.com", DraftOptions{To: "not an address"})
	require.Error(t, err)
}

func TestBuildOutgoingRoundTrip(t *testing.T) {
	opts := SendOptions{
		To:      "ada@example.com",
		Subject: "Report attached",
		Text:    "See attachment.",
		HTML:    "<p>See attachment.</p>",
		Attachments: []SendAttachment{
			{Filename: "report.csv", ContentType: "text/csv", Content: []byte("a,b\n1,2\n")},
		},
	}

	raw, err := buildOutgoing("me@example.com", "abc123@example.com", opts)
	require.NoError(t, err)

	body := parseBody(raw)
	assert.Equal(t, "See attachment.", strings.TrimSpace(body.text))
	assert.Equal(t, "<p>See attachment.</p>", strings.TrimSpace(body.html))
	require.Len(t, body.attachments, 1)
	assert.Equal(t, "report.csv", body.attachments[0].Filename)
	assert.Equal(t, int64(len("a,b\n1,2\n")), body.attachments[0].Size)

	assert.Contains(t, string(raw), "Message-Id")
	assert.NotContains(t, string(raw), "Bcc")
}

func TestCollectRecipients(t *testing.T) {
	got, err := collectRecipients(SendOptions{
		To:  "ada@example.com, Bob <bob@example.org>",
		Cc:  "carol@example.net",
		Bcc: "dan@example.io",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"ada@example.com", "bob@example.org", "carol@example.net", "dan@example.io",
	}, got)

	_, err = collectRecipients(SendOptions{To: "%%%"})
	require.Error(t, err)

	got, err = collectRecipients(SendOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerateMessageID(t *testing.T) {
	a := generateMessageID("me@example.com")
	b := generateMessageID("me@example.com")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, "@example.com"))
	assert.True(t, strings.HasSuffix(generateMessageID("bare"), "@localhost"))
}
