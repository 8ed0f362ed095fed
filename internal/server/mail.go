package server

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/hourinbox/webmail/internal/cache"
	"github.com/hourinbox/webmail/internal/mail"
	"github.com/hourinbox/webmail/internal/messageid"
	"github.com/hourinbox/webmail/internal/model"
	"github.com/hourinbox/webmail/internal/vcard"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
	maxSendBodySize  = 25 << 20
)

// cachePut stores a cache entry, logging instead of failing: a broken
// cache makes responses slower, not wrong.
func (s *Server) cachePut(email, key string, v any, ttl time.Duration) {
	if err := s.cache.Set(email, key, v, ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func queryFolder(r *http.Request) string {
	folder := r.URL.Query().Get("folder")
	if folder == "" {
		return "INBOX"
	}
	return folder
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// handleFolders serves the folder list, bypassing the cache when the
// client asks for ?refresh=true.
func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	key := cache.FoldersKey(auth.data.Email)
	refresh := r.URL.Query().Get("refresh") == "true"

	var folders []mail.Folder
	if !refresh && s.cache.Get(key, &folders) {
		writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
		return
	}

	folders, err = s.gateway.ListFolders(r.Context(), auth.account, auth.password)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	s.cachePut(auth.data.Email, key, folders, cache.FolderListTTL)
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

// handleMessages serves one cached page of a folder listing.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	folder := queryFolder(r)
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	key := cache.MessagesKey(auth.data.Email, folder, page, limit)
	var cached mail.MessagePage
	if s.cache.Get(key, &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	result, err := s.gateway.ListMessages(
		r.Context(), auth.account, auth.password, folder, page, limit,
	)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	s.cachePut(auth.data.Email, key, result, cache.MessagePageTTL)
	writeJSON(w, http.StatusOK, result)
}

// resolveIdentifier turns a path identifier into a UID: numeric values
// pass through, anything else is a base64url Message-ID slug resolved
// against the folder (with resolution cached).
func (s *Server) resolveIdentifier(
	r *http.Request, auth *authed, folder, identifier string,
) (uint32, error) {
	if messageid.IsNumericUID(identifier) {
		uid, err := strconv.ParseUint(identifier, 10, 32)
		if err != nil {
			return 0, errBadRequest("invalid message uid")
		}
		return uint32(uid), nil
	}

	msgID, ok := messageid.Decode(identifier)
	if !ok {
		return 0, errBadRequest("invalid message identifier")
	}

	key := cache.ResolveKey(auth.data.Email, folder, msgID)
	var uid uint32
	if s.cache.Get(key, &uid) && uid != 0 {
		return uid, nil
	}

	uid, err := s.gateway.ResolveMessageID(
		r.Context(), auth.account, auth.password, folder, msgID,
	)
	if err != nil {
		return 0, err
	}
	if uid == 0 {
		return 0, errNotFound("no message with that id in " + folder)
	}

	s.cachePut(auth.data.Email, key, uid, cache.ResolveTTL)
	return uid, nil
}

// handleMessage serves one full message by uid or Message-ID slug.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	folder := queryFolder(r)
	uid, err := s.resolveIdentifier(r, auth, folder, r.PathValue("identifier"))
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	key := cache.MessageKey(auth.data.Email, folder, uid)
	var cached mail.MessageFull
	if s.cache.Get(key, &cached) {
		writeJSON(w, http.StatusOK, map[string]any{"message": cached})
		return
	}

	msg, err := s.gateway.GetMessage(r.Context(), auth.account, auth.password, folder, uid)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}
	if msg == nil {
		s.writeError(w, s.log, errNotFound("message not found in "+folder))
		return
	}

	s.cachePut(auth.data.Email, key, msg, cache.MessageTTL)
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

// handleAttachment streams one attachment by message uid and filename.
func (s *Server) handleAttachment(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	uid, err := strconv.ParseUint(r.PathValue("uid"), 10, 32)
	if err != nil {
		s.writeError(w, s.log, errBadRequest("invalid message uid"))
		return
	}
	folder := queryFolder(r)

	att, err := s.gateway.GetAttachment(
		r.Context(), auth.account, auth.password, folder, uint32(uid), r.PathValue("filename"),
	)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(att.Content)))
	_, _ = w.Write(att.Content)
}

type flagsRequest struct {
	Folder      string   `json:"folder"`
	UIDs        []uint32 `json:"uids"`
	AddFlags    []string `json:"addFlags"`
	RemoveFlags []string `json:"removeFlags"`
}

// handleFlags updates flags on one message.
func (s *Server) handleFlags(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	uid, err := strconv.ParseUint(r.PathValue("uid"), 10, 32)
	if err != nil {
		s.writeError(w, s.log, errBadRequest("invalid message uid"))
		return
	}

	var req flagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, s.log, errBadRequest("invalid JSON body"))
		return
	}
	if req.Folder == "" {
		req.Folder = "INBOX"
	}

	err = s.gateway.UpdateFlags(
		r.Context(), auth.account, auth.password, req.Folder,
		[]uint32{uint32(uid)}, req.AddFlags, req.RemoveFlags,
	)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	s.invalidateFolder(auth.data.Email, req.Folder)
	writeJSON(w, http.StatusOK, map[string]any{"updated": 1})
}

// handleBatchFlags updates flags on many messages in one upstream
// round-trip per flag direction.
func (s *Server) handleBatchFlags(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	var req flagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, s.log, errBadRequest("invalid JSON body"))
		return
	}
	if len(req.UIDs) == 0 {
		s.writeError(w, s.log, errBadRequest("uids are required"))
		return
	}
	if req.Folder == "" {
		req.Folder = "INBOX"
	}

	err = s.gateway.UpdateFlags(
		r.Context(), auth.account, auth.password, req.Folder,
		req.UIDs, req.AddFlags, req.RemoveFlags,
	)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	s.invalidateFolder(auth.data.Email, req.Folder)
	writeJSON(w, http.StatusOK, map[string]any{"updated": len(req.UIDs)})
}

// handleDelete routes deletion: move to Trash when the message is
// anywhere else and a Trash folder exists, expunge when it is already
// in Trash (no Trash-of-Trash) or no Trash folder exists.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	uid, err := strconv.ParseUint(r.PathValue("uid"), 10, 32)
	if err != nil {
		s.writeError(w, s.log, errBadRequest("invalid message uid"))
		return
	}
	folder := queryFolder(r)

	trash, err := s.gateway.SpecialUseFolder(
		r.Context(), auth.account, auth.password, imap.MailboxAttrTrash, "Trash",
	)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	moved := false
	if trash != "" && !strings.EqualFold(folder, trash) {
		err = s.gateway.MoveMessage(
			r.Context(), auth.account, auth.password, folder, uint32(uid), trash,
		)
		moved = true
	} else {
		err = s.gateway.DeleteMessage(
			r.Context(), auth.account, auth.password, folder, uint32(uid),
		)
	}
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	s.invalidateFolder(auth.data.Email, folder)
	if moved {
		s.invalidateFolder(auth.data.Email, trash)
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "moved": moved})
}

type moveRequest struct {
	UID    uint32 `json:"uid"`
	Folder string `json:"folder"`
}

// specialUseMove moves a message into a role folder, failing with a
// descriptive error when the account has no folder for that role.
func (s *Server) specialUseMove(
	w http.ResponseWriter, r *http.Request, attrs []imap.MailboxAttr, fallback, roleName string,
) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, s.log, errBadRequest("invalid JSON body"))
		return
	}
	if req.UID == 0 {
		s.writeError(w, s.log, errBadRequest("uid is required"))
		return
	}
	if req.Folder == "" {
		req.Folder = "INBOX"
	}

	target := ""
	for _, attr := range attrs {
		target, err = s.gateway.SpecialUseFolder(
			r.Context(), auth.account, auth.password, attr, fallback,
		)
		if err != nil {
			s.writeError(w, s.log, err)
			return
		}
		if target != "" {
			break
		}
	}
	if target == "" {
		s.writeError(w, s.log, errNotFound("this account has no "+roleName+" folder"))
		return
	}

	err = s.gateway.MoveMessage(
		r.Context(), auth.account, auth.password, req.Folder, req.UID, target,
	)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	s.invalidateFolder(auth.data.Email, req.Folder)
	s.invalidateFolder(auth.data.Email, target)
	writeJSON(w, http.StatusOK, map[string]any{"moved": true, "target": target})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	s.specialUseMove(w, r,
		[]imap.MailboxAttr{imap.MailboxAttrArchive, imap.MailboxAttrAll}, "Archive", "archive")
}

func (s *Server) handleJunk(w http.ResponseWriter, r *http.Request) {
	s.specialUseMove(w, r, []imap.MailboxAttr{imap.MailboxAttrJunk}, "Junk", "junk")
}

// handleSearch runs a structured search, cached per session token.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	q := r.URL.Query()
	folder := queryFolder(r)
	limit := queryInt(r, "limit", defaultPageLimit)

	query := mail.SearchQuery{
		Text:    q.Get("q"),
		From:    q.Get("from"),
		To:      q.Get("to"),
		Subject: q.Get("subject"),
	}
	if raw := q.Get("since"); raw != "" {
		query.Since, err = parseSearchDate(raw)
		if err != nil {
			s.writeError(w, s.log, errBadRequest("invalid since date"))
			return
		}
	}
	if raw := q.Get("before"); raw != "" {
		query.Before, err = parseSearchDate(raw)
		if err != nil {
			s.writeError(w, s.log, errBadRequest("invalid before date"))
			return
		}
	}
	if raw := q.Get("larger"); raw != "" {
		query.Larger, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := q.Get("smaller"); raw != "" {
		query.Smaller, _ = strconv.ParseInt(raw, 10, 64)
	}

	key := cache.SearchKey(auth.token, folder, q.Encode(), limit)
	var cached mail.MessagePage
	if s.cache.Get(key, &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	result, err := s.gateway.SearchMessages(
		r.Context(), auth.account, auth.password, folder, query, limit,
	)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	s.cachePut(auth.data.Email, key, result, cache.SearchTTL)
	writeJSON(w, http.StatusOK, result)
}

func parseSearchDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// handleStarred serves the cross-folder flagged view (INBOX flagged
// search, cached under the account's starred key).
func (s *Server) handleStarred(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	limit := queryInt(r, "limit", defaultPageLimit)
	key := cache.StarredKey(auth.data.Email)

	var cached mail.MessagePage
	if s.cache.Get(key, &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	result, err := s.gateway.SearchMessages(
		r.Context(), auth.account, auth.password, "INBOX",
		mail.SearchQuery{Flagged: true}, limit,
	)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	s.cachePut(auth.data.Email, key, result, cache.MessagePageTTL)
	writeJSON(w, http.StatusOK, result)
}

type sendRequest struct {
	To          string           `json:"to"`
	Cc          string           `json:"cc"`
	Bcc         string           `json:"bcc"`
	Subject     string           `json:"subject"`
	Text        string           `json:"text"`
	HTML        string           `json:"html"`
	ReplyTo     string           `json:"replyTo"`
	InReplyTo   string           `json:"inReplyTo"`
	Attachments []sendAttachment `json:"attachments"`
}

type sendAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// handleSend submits a message. Accepts JSON (attachments base64) or
// multipart form data with file parts.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	opts, err := parseSendRequest(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}
	if strings.TrimSpace(opts.To) == "" && strings.TrimSpace(opts.Cc) == "" &&
		strings.TrimSpace(opts.Bcc) == "" {
		s.writeError(w, s.log, errBadRequest("at least one recipient is required"))
		return
	}

	messageID, err := s.gateway.SendMail(r.Context(), auth.account, auth.password, *opts)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	// A send touches Sent and possibly Drafts; the blast radius is
	// unclear, so the whole account cache goes.
	s.invalidateAccount(auth.data.Email)
	writeJSON(w, http.StatusOK, map[string]any{"messageId": messageID})
}

func parseSendRequest(r *http.Request) (*mail.SendOptions, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		return parseMultipartSend(r)
	}

	var req sendRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSendBodySize)).Decode(&req); err != nil {
		return nil, errBadRequest("invalid JSON body")
	}

	opts := &mail.SendOptions{
		To:        req.To,
		Cc:        req.Cc,
		Bcc:       req.Bcc,
		Subject:   req.Subject,
		Text:      req.Text,
		HTML:      req.HTML,
		ReplyTo:   req.ReplyTo,
		InReplyTo: req.InReplyTo,
	}
	for _, att := range req.Attachments {
		content, err := base64.StdEncoding.DecodeString(att.Content)
		if err != nil {
			return nil, errBadRequest("attachment " + att.Filename + " is not valid base64")
		}
		opts.Attachments = append(opts.Attachments, mail.SendAttachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Content:     content,
		})
	}
	return opts, nil
}

func parseMultipartSend(r *http.Request) (*mail.SendOptions, error) {
	if err := r.ParseMultipartForm(maxSendBodySize); err != nil {
		return nil, errBadRequest("invalid multipart body")
	}

	opts := &mail.SendOptions{
		To:        r.FormValue("to"),
		Cc:        r.FormValue("cc"),
		Bcc:       r.FormValue("bcc"),
		Subject:   r.FormValue("subject"),
		Text:      r.FormValue("text"),
		HTML:      r.FormValue("html"),
		ReplyTo:   r.FormValue("replyTo"),
		InReplyTo: r.FormValue("inReplyTo"),
	}

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["attachments"] {
			file, err := header.Open()
			if err != nil {
				return nil, errBadRequest("unreadable attachment " + header.Filename)
			}
			content, err := io.ReadAll(file)
			_ = file.Close()
			if err != nil {
				return nil, errBadRequest("unreadable attachment " + header.Filename)
			}
			opts.Attachments = append(opts.Attachments, mail.SendAttachment{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Content:     content,
			})
		}
	}
	return opts, nil
}

type draftRequest struct {
	To         string `json:"to"`
	Cc         string `json:"cc"`
	Bcc        string `json:"bcc"`
	Subject    string `json:"subject"`
	HTML       string `json:"html"`
	ReplaceUID uint32 `json:"replaceUid"`
}

// handleSaveDraft stores a draft revision, replacing the previous
// autosave when replaceUid is given.
func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, s.log, errBadRequest("invalid JSON body"))
		return
	}

	uid, folder, err := s.gateway.AppendDraft(
		r.Context(), auth.account, auth.password,
		mail.DraftOptions{
			To: req.To, Cc: req.Cc, Bcc: req.Bcc,
			Subject: req.Subject, HTML: req.HTML,
		},
		req.ReplaceUID,
	)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	s.invalidateFolder(auth.data.Email, folder)
	writeJSON(w, http.StatusOK, map[string]any{
		"uid":                 uid,
		"folder":              folder,
		"autosaveIntervalSec": s.draftAutosaveSec,
	})
}

// handleGetDraft reads a draft back for editing.
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	uid := queryInt(r, "uid", 0)
	if uid == 0 {
		s.writeError(w, s.log, errBadRequest("uid is required"))
		return
	}
	folder := r.URL.Query().Get("folder")
	if folder == "" {
		folder = "Drafts"
	}

	draft, err := s.gateway.GetDraft(
		r.Context(), auth.account, auth.password, folder, uint32(uid),
	)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
}

// mergedContacts joins harvested addresses with explicitly imported
// ones. Imported entries win name conflicts; they were typed by the
// user.
func (s *Server) mergedContacts(r *http.Request, auth *authed) ([]mail.Address, error) {
	harvested, err := s.gateway.CollectAddresses(r.Context(), auth.account, auth.password)
	if err != nil {
		return nil, err
	}

	imported, err := s.store.ContactsByEmail(r.Context(), auth.data.Email)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]mail.Address, len(harvested)+len(imported))
	for _, a := range harvested {
		merged[strings.ToLower(a.Address)] = a
	}
	for _, c := range imported {
		key := strings.ToLower(c.Address)
		if existing, ok := merged[key]; !ok || c.Name != "" || existing.Name == "" {
			merged[key] = mail.Address{Name: c.Name, Address: c.Address}
		}
	}

	out := make([]mail.Address, 0, len(merged))
	for _, a := range merged {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Address) < strings.ToLower(out[j].Address)
	})
	return out, nil
}

// handleContacts serves autocomplete contacts: harvested from recent
// mail plus imported entries, cached.
func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	key := cache.ContactsKey(auth.data.Email)
	var cached []mail.Address
	if s.cache.Get(key, &cached) {
		writeJSON(w, http.StatusOK, map[string]any{"contacts": cached})
		return
	}

	contacts, err := s.mergedContacts(r, auth)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	s.cachePut(auth.data.Email, key, contacts, cache.ContactsTTL)
	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

// handleContactsExport downloads the merged contact list as vCard 3.0.
func (s *Server) handleContactsExport(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	contacts, err := s.mergedContacts(r, auth)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	entries := make([]vcard.Entry, len(contacts))
	for i, c := range contacts {
		entries[i] = vcard.Entry{Name: c.Name, Address: c.Address}
	}

	w.Header().Set("Content-Type", "text/vcard; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="contacts.vcf"`)
	_, _ = w.Write(vcard.Generate(entries))
}

// handleContactsImport accepts a vCard or CSV upload and stores its
// entries.
func (s *Server) handleContactsImport(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	if err := r.ParseMultipartForm(maxSendBodySize); err != nil {
		s.writeError(w, s.log, errBadRequest("invalid multipart body"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, s.log, errBadRequest("a contact file is required"))
		return
	}
	defer file.Close()

	entries, err := vcard.ParseFile(header.Filename, file)
	if err != nil {
		s.writeError(w, s.log, errBadRequest(err.Error()))
		return
	}

	contacts := make([]model.Contact, 0, len(entries))
	for _, e := range entries {
		contacts = append(contacts, model.Contact{Name: e.Name, Address: e.Address})
	}

	imported, err := s.store.ImportContacts(r.Context(), auth.data.Email, contacts)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	// Imported entries feed autocomplete; drop the cached list.
	if err := s.kv.Del(cache.ContactsKey(auth.data.Email)); err != nil {
		s.log.Warn().Err(err).Msg("dropping contacts cache failed")
	}

	writeJSON(w, http.StatusOK, map[string]any{"imported": imported, "total": len(entries)})
}
