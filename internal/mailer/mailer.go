// Package mailer implements the email surfaces: a saved-search digest
// worker that mails matching listings to subscribed users, and an IMAP
// intake poller that turns inbound property inquiries into agent
// queries and replies in-thread. Composition is markdown converted to
// multipart/alternative MIME; delivery is plain SMTP with implicit TLS
// or STARTTLS.
package mailer

import (
	"io"
	"time"

	"github.com/emersion/go-imap/v2"
)

// drainLiteral reads and discards the contents of an IMAP literal
// reader. This prevents blocking the IMAP stream when a body section
// is fetched but not consumed. Nil readers are handled gracefully.
func drainLiteral(r imap.LiteralReader) {
	if r == nil {
		return
	}
	_, _ = io.Copy(io.Discard, r)
}

// Envelope is the summary metadata for an inbound message, enough for
// the intake poller to decide what is new.
type Envelope struct {
	// UID is the IMAP unique identifier for this message within its folder.
	UID uint32

	// Date is the message's Date header.
	Date time.Time

	// From is the sender, formatted as "Name <addr>" or just the address.
	From string

	// To is the list of recipients.
	To []string

	// Subject is the message subject line.
	Subject string
}

// Message is a fully-fetched inquiry with body content extracted from
// the MIME structure.
type Message struct {
	Envelope

	// MessageID is the Message-ID header value (without angle brackets).
	MessageID string

	// References contains the full References chain for threading.
	References []string

	// ReplyTo is the Reply-To address, if different from From.
	ReplyTo string

	// TextBody is the plain-text body content. Preferred over HTMLBody
	// when building the agent query.
	TextBody string

	// HTMLBody is the raw HTML body, if present.
	HTMLBody string
}

// ListOptions controls mailbox listing.
type ListOptions struct {
	// Folder is the mailbox to list from. Default: "INBOX".
	Folder string

	// Limit is the maximum number of messages to return. Default: 20.
	Limit int

	// SinceUID restricts the listing to UIDs strictly greater than this
	// value, ignoring Limit. This is the polling path.
	SinceUID uint32
}
