package smtp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailcat/mailcat/interfaces"
	"github.com/mailcat/mailcat/internal/logger"
	"github.com/mailcat/mailcat/internal/tracing"

	er "github.com/mailcat/mailcat/internal/errors"
)

// Session states for the SMTP state machine.
const (
	stateConnected = iota
	stateGreeted
	stateMailFrom
	stateRcptTo
)

// idleTimeout is the maximum time a session can remain idle before being closed.
const idleTimeout = 60 * time.Second

// Session represents a single SMTP client connection and drives the
// protocol state machine until the client disconnects.
type Session struct {
	conn     net.Conn
	reader   *bufio.Reader
	writer   *bufio.Writer
	state    int
	hostname string
	log      logger.Logger
	ingest   interfaces.IngestionService

	// Current transaction
	mailFrom string
	rcptTo   []string
}

func NewSession(conn net.Conn, hostname string, log logger.Logger, ingest interfaces.IngestionService) *Session {
	return &Session{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		writer:   bufio.NewWriter(conn),
		state:    stateConnected,
		hostname: hostname,
		log:      log,
		ingest:   ingest,
	}
}

// Handle runs the session loop, processing commands until the client
// disconnects or an error occurs.
func (s *Session) Handle(ctx context.Context) {
	defer s.conn.Close()

	s.writeLine("220 %s ESMTP mailcat", s.hostname)

	for {
		select {
		case <-ctx.Done():
			s.writeLine("421 Service shutting down")
			return
		default:
		}

		if err := s.conn.SetDeadline(time.Now().Add(idleTimeout)); err != nil {
			s.log.Errorf("Failed to set connection deadline: %v", err)
			return
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				s.log.Debugf("SMTP connection read error: %v", err)
			}
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		cmd, arg := parseCommand(line)
		done := s.handleCommand(ctx, cmd, arg)
		if done {
			return
		}
	}
}

// handleCommand processes one command and returns true when the session
// should end.
func (s *Session) handleCommand(ctx context.Context, cmd, arg string) bool {
	switch cmd {
	case "EHLO", "HELO":
		s.handleEHLO(cmd, arg)
	case "MAIL":
		s.handleMAIL(arg)
	case "RCPT":
		s.handleRCPT(ctx, arg)
	case "DATA":
		s.handleDATA(ctx)
	case "RSET":
		s.handleRSET()
	case "NOOP":
		s.writeLine("250 OK")
	case "VRFY":
		// Do not leak mailbox existence outside the RCPT path.
		s.writeLine("252 Cannot verify user")
	case "QUIT":
		s.writeLine("221 Bye")
		return true
	default:
		s.writeLine("500 Unrecognized command")
	}
	return false
}

func (s *Session) handleEHLO(cmd, arg string) {
	if arg == "" {
		s.writeLine("501 Syntax: %s hostname", cmd)
		return
	}

	if cmd == "HELO" {
		s.state = stateGreeted
		s.writeLine("250 %s Hello %s", s.hostname, arg)
		return
	}

	s.state = stateGreeted
	s.writeLine("250-%s Hello %s", s.hostname, arg)
	s.writeLine("250-SIZE %d", s.ingest.MaxMessageBytes())
	s.writeLine("250 OK")
}

func (s *Session) handleMAIL(arg string) {
	if s.state < stateGreeted {
		s.writeLine("503 Send EHLO/HELO first")
		return
	}

	upper := strings.ToUpper(arg)
	if !strings.HasPrefix(upper, "FROM:") {
		s.writeLine("501 Syntax: MAIL FROM:<address>")
		return
	}

	addr := extractAddress(arg[5:])
	// Empty MAIL FROM (null reverse-path) is allowed; bounces use it.
	s.mailFrom = addr
	s.rcptTo = nil
	s.state = stateMailFrom
	s.writeLine("250 OK")
}

func (s *Session) handleRCPT(ctx context.Context, arg string) {
	if s.state < stateMailFrom {
		s.writeLine("503 Send MAIL FROM first")
		return
	}

	upper := strings.ToUpper(arg)
	if !strings.HasPrefix(upper, "TO:") {
		s.writeLine("501 Syntax: RCPT TO:<address>")
		return
	}

	addr := extractAddress(arg[3:])
	if addr == "" {
		s.writeLine("501 Syntax: RCPT TO:<address>")
		return
	}

	// Receive-only: a recipient must resolve to a live mailbox, otherwise
	// the message is refused outright.
	if !s.ingest.KnownRecipient(ctx, addr) {
		s.writeLine("550 No such mailbox here")
		return
	}

	s.rcptTo = append(s.rcptTo, addr)
	s.state = stateRcptTo
	s.writeLine("250 OK")
}

func (s *Session) handleDATA(ctx context.Context) {
	if s.state < stateRcptTo {
		s.writeLine("503 Send RCPT TO first")
		return
	}

	s.writeLine("354 Start mail input; end with <CRLF>.<CRLF>")

	maxBytes := s.ingest.MaxMessageBytes()
	var dataBuilder strings.Builder
	oversized := false
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.log.Errorf("Error reading DATA: %v", err)
			return
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "." {
			break
		}

		// Dot-stuffing: lines starting with ".." have the leading dot removed
		if strings.HasPrefix(trimmed, "..") {
			line = line[1:]
		}

		// Keep draining to the terminator even once over the limit so the
		// session stays in sync.
		if dataBuilder.Len()+len(line) > maxBytes {
			oversized = true
			continue
		}
		dataBuilder.WriteString(line)
	}

	if oversized {
		s.writeLine("552 Message exceeds maximum size of %d bytes", maxBytes)
		s.resetTransaction()
		return
	}

	raw := dataBuilder.String()
	if err := s.deliver(ctx, raw); err != nil {
		if errors.Is(err, er.ErrUnknownRecipient) {
			// The mailbox expired between RCPT and DATA.
			s.writeLine("550 No such mailbox here")
		} else if errors.Is(err, er.ErrMessageTooLarge) {
			s.writeLine("552 Message exceeds maximum size of %d bytes", maxBytes)
		} else {
			s.log.Errorf("Delivery failed: %v", err)
			s.writeLine("451 Temporary failure, please try again later")
		}
		s.resetTransaction()
		return
	}

	s.writeLine("250 OK message accepted")
	s.resetTransaction()
}

// deliver runs the ingestion pipeline once per accepted recipient.
func (s *Session) deliver(ctx context.Context, raw string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Session.deliver")
	defer span.Finish()
	tracing.TagComponentSMTP(span)

	for _, rcpt := range s.rcptTo {
		if _, err := s.ingest.Deliver(ctx, s.mailFrom, rcpt, raw); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}
	return nil
}

func (s *Session) handleRSET() {
	s.resetTransaction()
	s.writeLine("250 OK")
}

// resetTransaction clears the mail transaction without dropping the
// session greeting state.
func (s *Session) resetTransaction() {
	s.mailFrom = ""
	s.rcptTo = nil
	if s.state >= stateGreeted {
		s.state = stateGreeted
	}
}

// writeLine writes a formatted line to the client, followed by \r\n.
func (s *Session) writeLine(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if _, err := s.writer.WriteString(line + "\r\n"); err != nil {
		s.log.Errorf("Failed to write to SMTP client: %v", err)
		return
	}
	if err := s.writer.Flush(); err != nil {
		s.log.Errorf("Failed to flush to SMTP client: %v", err)
	}
}

// parseCommand splits a command line into the verb and its argument.
func parseCommand(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	cmd := strings.ToUpper(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}
	return cmd, arg
}

// extractAddress extracts an email address from an SMTP parameter,
// handling both angle-bracket and bare formats, and tolerating trailing
// ESMTP parameters like SIZE=.
func extractAddress(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "<") {
		end := strings.Index(s, ">")
		if end < 0 {
			return ""
		}
		return s[1:end]
	}

	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		s = s[:idx]
	}
	return s
}
