package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/gharkhoji/gharkhoji/internal/config"
)

// maxBodySize is the maximum body text to keep from a message. Larger
// bodies are truncated with a note; inquiries do not need attachments
// or novels.
const maxBodySize = 32 * 1024

// maxRawMessageSize is the maximum raw RFC822 message size to buffer
// when reading from the IMAP literal. The remainder of oversized
// literals is drained to keep the IMAP stream in sync.
const maxRawMessageSize = 5 * 1024 * 1024

// Mailbox is a single-account IMAP client that wraps go-imap/v2 with
// automatic reconnection and mutex-serialized access. All public
// methods are goroutine-safe.
type Mailbox struct {
	cfg    config.IMAPConfig
	logger *slog.Logger

	mu     sync.Mutex
	client *imapclient.Client
}

// NewMailbox creates an IMAP client for the configured inquiry
// account. The connection is established lazily on first use.
func NewMailbox(cfg config.IMAPConfig, logger *slog.Logger) *Mailbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailbox{
		cfg:    cfg,
		logger: logger.With("component", "mailbox"),
	}
}

// connectLocked performs the actual connection. Caller must hold m.mu.
func (m *Mailbox) connectLocked(ctx context.Context) error {
	if m.client != nil {
		_ = m.client.Close()
		m.client = nil
	}

	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprintf("%d", m.cfg.Port))

	var opts imapclient.Options
	if m.cfg.TLS {
		opts.TLSConfig = &tls.Config{ServerName: m.cfg.Host}
	}

	m.logger.Debug("connecting to IMAP server",
		"host", m.cfg.Host, "port", m.cfg.Port, "tls", m.cfg.TLS)

	var client *imapclient.Client
	var err error
	if m.cfg.TLS {
		client, err = imapclient.DialTLS(addr, &opts)
	} else {
		client, err = imapclient.DialInsecure(addr, &opts)
	}
	if err != nil {
		return fmt.Errorf("dial IMAP %s: %w", addr, err)
	}

	if err := client.Login(m.cfg.Username, m.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return fmt.Errorf("login as %s: %w", m.cfg.Username, err)
	}

	m.client = client
	m.logger.Info("IMAP connected", "host", m.cfg.Host, "user", m.cfg.Username)
	return nil
}

// ensureConnected checks the connection and reconnects if needed.
// Caller must hold m.mu.
func (m *Mailbox) ensureConnected(ctx context.Context) error {
	if m.client != nil {
		// Quick liveness check via NOOP.
		if err := m.client.Noop().Wait(); err == nil {
			return nil
		}
		m.logger.Debug("IMAP connection stale, reconnecting", "host", m.cfg.Host)
	}
	return m.connectLocked(ctx)
}

// Ping checks that the IMAP connection is alive, reconnecting if
// necessary.
func (m *Mailbox) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureConnected(ctx)
}

// Close logs out and closes the IMAP connection.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}

// selectFolder selects a mailbox. Caller must hold m.mu.
func (m *Mailbox) selectFolder(folder string) error {
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := m.client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("select %s: %w", folder, err)
	}
	return nil
}

// ListMessages returns messages from the specified folder, newest
// first. When opts.SinceUID is set, only messages with UIDs strictly
// greater than that value are returned (ignoring Limit), which lets
// the poller pick up every message between cycles.
func (m *Mailbox) ListMessages(ctx context.Context, opts ListOptions) ([]Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureConnected(ctx); err != nil {
		return nil, err
	}

	folder := opts.Folder
	if folder == "" {
		folder = "INBOX"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	if err := m.selectFolder(folder); err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{}
	if opts.SinceUID > 0 {
		criteria.UID = []imap.UIDSet{
			{imap.UIDRange{Start: imap.UID(opts.SinceUID + 1), Stop: 0}},
		}
	}

	searchData, err := m.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", folder, err)
	}

	allUIDs := searchData.AllUIDs()
	if len(allUIDs) == 0 {
		return nil, nil
	}

	// When SinceUID is set, return all matching UIDs. Otherwise take
	// the most recent N (highest UIDs = newest).
	recentUIDs := allUIDs
	if opts.SinceUID == 0 {
		start := 0
		if len(allUIDs) > limit {
			start = len(allUIDs) - limit
		}
		recentUIDs = allUIDs[start:]
	}

	uidSet := imap.UIDSet{}
	for _, uid := range recentUIDs {
		uidSet.AddNum(uid)
	}

	return m.fetchEnvelopes(uidSet)
}

// fetchEnvelopes fetches envelope data for the given UIDs and returns
// them newest-first. Caller must hold m.mu and have a selected folder.
func (m *Mailbox) fetchEnvelopes(uidSet imap.UIDSet) ([]Envelope, error) {
	fetchOpts := &imap.FetchOptions{
		UID:      true,
		Envelope: true,
	}

	fetchCmd := m.client.Fetch(uidSet, fetchOpts)

	var envelopes []Envelope
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		env, err := m.parseEnvelopeData(msg)
		if err != nil {
			m.logger.Debug("skipping message", "error", err)
			continue
		}
		envelopes = append(envelopes, env)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch envelopes: %w", err)
	}

	// Sort newest-first by UID (descending).
	for i, j := 0, len(envelopes)-1; i < j; i, j = i+1, j-1 {
		envelopes[i], envelopes[j] = envelopes[j], envelopes[i]
	}

	return envelopes, nil
}

// parseEnvelopeData extracts an Envelope from IMAP fetch response items.
func (m *Mailbox) parseEnvelopeData(msg *imapclient.FetchMessageData) (Envelope, error) {
	var env Envelope

	for {
		item := msg.Next()
		if item == nil {
			break
		}

		switch data := item.(type) {
		case imapclient.FetchItemDataUID:
			env.UID = uint32(data.UID)
		case imapclient.FetchItemDataEnvelope:
			if data.Envelope != nil {
				env.Date = data.Envelope.Date
				env.Subject = data.Envelope.Subject
				if len(data.Envelope.From) > 0 {
					env.From = formatAddress(data.Envelope.From[0])
				}
				for _, addr := range data.Envelope.To {
					env.To = append(env.To, formatAddress(addr))
				}
			}
		case imapclient.FetchItemDataBodySection:
			// Drain body section literals to keep the IMAP stream in sync.
			drainLiteral(data.Literal)
		}
	}

	if env.UID == 0 {
		return env, fmt.Errorf("message missing UID")
	}
	return env, nil
}

// ReadMessage fetches and parses a single message by UID from the
// specified folder. The MIME structure is walked to extract text/plain
// and text/html bodies; fetching marks the message \Seen, which is the
// right semantics for an inquiry that is about to be answered.
func (m *Mailbox) ReadMessage(ctx context.Context, folder string, uid uint32) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureConnected(ctx); err != nil {
		return nil, err
	}

	if folder == "" {
		folder = "INBOX"
	}
	if err := m.selectFolder(folder); err != nil {
		return nil, err
	}

	uidSet := imap.UIDSet{}
	uidSet.AddNum(imap.UID(uid))

	fetchOpts := &imap.FetchOptions{
		UID:      true,
		Envelope: true,
		BodySection: []*imap.FetchItemBodySection{
			{Peek: false},
		},
	}

	fetchCmd := m.client.Fetch(uidSet, fetchOpts)

	msg := fetchCmd.Next()
	if msg == nil {
		_ = fetchCmd.Close()
		return nil, fmt.Errorf("message UID %d not found in %s", uid, folder)
	}

	result := &Message{}
	var rawBody []byte

	for {
		item := msg.Next()
		if item == nil {
			break
		}

		switch data := item.(type) {
		case imapclient.FetchItemDataUID:
			result.UID = uint32(data.UID)
		case imapclient.FetchItemDataEnvelope:
			if data.Envelope != nil {
				result.Date = data.Envelope.Date
				result.Subject = data.Envelope.Subject
				result.MessageID = data.Envelope.MessageID
				if len(data.Envelope.From) > 0 {
					result.From = formatAddress(data.Envelope.From[0])
				}
				for _, addr := range data.Envelope.To {
					result.To = append(result.To, formatAddress(addr))
				}
				if len(data.Envelope.ReplyTo) > 0 {
					result.ReplyTo = formatAddress(data.Envelope.ReplyTo[0])
				}
			}
		case imapclient.FetchItemDataBodySection:
			// Consume the literal immediately. go-imap/v2 streams data
			// from the IMAP connection; msg.Next() advances past unread
			// literals, so deferring the read would lose the body.
			if data.Literal == nil {
				m.logger.Debug("nil body literal", "uid", uid)
				continue
			}
			var readErr error
			rawBody, readErr = io.ReadAll(io.LimitReader(data.Literal, maxRawMessageSize))
			drainLiteral(data.Literal)
			if readErr != nil {
				m.logger.Debug("error reading body literal", "uid", uid, "error", readErr)
				rawBody = nil
			}
		}
	}

	if rawBody != nil {
		if err := m.parseBody(result, bytes.NewReader(rawBody)); err != nil {
			m.logger.Debug("body parse error", "uid", uid, "error", err)
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch message UID %d: %w", uid, err)
	}

	return result, nil
}

// parseBody walks the MIME structure and extracts text content and the
// References header, which is not available from the IMAP Envelope.
//
// go-message's mail.CreateReader and NextPart may return both a valid
// reader/part AND an error when the message uses an unknown charset.
// Those are treated as non-fatal; slightly garbled text still makes a
// workable inquiry.
func (m *Mailbox) parseBody(msg *Message, r io.Reader) error {
	mailReader, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return fmt.Errorf("create mail reader: %w", err)
	}
	if mailReader == nil {
		if err != nil {
			return fmt.Errorf("create mail reader returned nil: %w", err)
		}
		return fmt.Errorf("create mail reader returned nil")
	}
	if err != nil {
		m.logger.Debug("mail reader created with charset warning", "error", err)
	}

	if refs, err := mailReader.Header.MsgIDList("References"); err == nil && len(refs) > 0 {
		msg.References = refs
	}

	for {
		part, err := mailReader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return fmt.Errorf("next part: %w", err)
		}
		if part == nil {
			continue
		}
		if err != nil {
			m.logger.Debug("part has charset warning", "error", err)
		}

		var contentType string
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ = h.ContentType()
		case *mail.AttachmentHeader:
			// Skip attachment bodies.
			continue
		default:
			continue
		}

		switch {
		case contentType == "text/plain" && msg.TextBody == "":
			msg.TextBody = readPartText(part.Body, m.logger)
		case contentType == "text/html" && msg.HTMLBody == "":
			msg.HTMLBody = readPartText(part.Body, m.logger)
		}
	}

	return nil
}

// readPartText reads a MIME part body, truncating at maxBodySize.
func readPartText(r io.Reader, logger *slog.Logger) string {
	body, err := io.ReadAll(io.LimitReader(r, maxBodySize+1))
	if err != nil {
		logger.Debug("error reading message part", "error", err)
		return ""
	}
	text := string(body)
	if len(body) > maxBodySize {
		text = text[:maxBodySize] + "\n\n[truncated]"
	}
	return strings.TrimSpace(text)
}

// formatAddress formats an IMAP address as "Name <user@host>" or just
// "user@host" if no name is set.
func formatAddress(addr imap.Address) string {
	email := addr.Addr()
	if addr.Name != "" {
		return fmt.Sprintf("%s <%s>", addr.Name, email)
	}
	return email
}
