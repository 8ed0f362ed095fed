package mail

import "time"

// Account holds the upstream connection parameters for one mailbox
// account. It is assembled from the session record; the password
// travels separately so it is never serialized with the account.
type Account struct {
	Email              string
	IMAPHost           string
	IMAPPort           int
	SMTPHost           string
	SMTPPort           int
	TLSMode            string
	RejectUnauthorized bool
}

// Folder is one mailbox with its aggregate counts. SpecialUse carries
// the server-advertised role attribute (`\Sent`, `\Trash`, ...) used to
// route mutations without relying on display names.
type Folder struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	SpecialUse string `json:"specialUse,omitempty"`
	Messages   uint32 `json:"messages"`
	Unseen     uint32 `json:"unseen"`
}

// Address is the single normalized shape for the several inconsistent
// address forms upstream servers produce. Normalization happens at the
// gateway boundary only; nothing downstream re-parses addresses.
type Address struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// MessageSummary is the listing shape: envelope data without bodies.
// UID is only meaningful within its folder.
type MessageSummary struct {
	UID       uint32    `json:"uid"`
	Seq       uint32    `json:"seq"`
	MessageID string    `json:"messageId,omitempty"`
	Subject   string    `json:"subject"`
	From      []Address `json:"from"`
	To        []Address `json:"to"`
	Date      time.Time `json:"date"`
	Flags     []string  `json:"flags"`
	Preview   string    `json:"preview"`
}

// MessageFull extends the summary with parsed bodies and attachment
// metadata.
type MessageFull struct {
	MessageSummary
	HTML        string       `json:"html"`
	Text        string       `json:"text"`
	Cc          []Address    `json:"cc,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is attachment metadata as shown in a message view.
type Attachment struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// AttachmentContent is a downloaded attachment body.
type AttachmentContent struct {
	Filename    string
	ContentType string
	Content     []byte
}

// MessagePage is one page of a folder listing or search result.
// Total is the folder's (or match set's) full count, not len(Messages).
type MessagePage struct {
	Messages []MessageSummary `json:"messages"`
	Total    int              `json:"total"`
}

// SearchQuery is the structured search form translated into the IMAP
// search grammar.
type SearchQuery struct {
	Text    string
	From    string
	To      string
	Subject string
	Since   time.Time
	Before  time.Time
	Larger  int64
	Smaller int64
	Flagged bool
}

// SendAttachment is an outgoing attachment. ContentID is set for
// extracted inline images and referenced from the HTML body as
// cid:<ContentID>.
type SendAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
	ContentID   string
}

// SendOptions describes one outgoing message. Address fields hold
// comma-separated RFC 5322 address lists as typed by the user.
type SendOptions struct {
	To          string
	Cc          string
	Bcc         string
	Subject     string
	Text        string
	HTML        string
	ReplyTo     string
	InReplyTo   string
	Attachments []SendAttachment
}

// DraftOptions is the editable state of a compose window, persisted to
// the Drafts folder between autosaves.
type DraftOptions struct {
	To      string
	Cc      string
	Bcc     string
	Subject string
	HTML    string
}

// DraftContent is a draft read back for editing.
type DraftContent struct {
	To      string `json:"to"`
	Cc      string `json:"cc"`
	Bcc     string `json:"bcc"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}
