package smtp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	er "github.com/mailcat/mailcat/internal/errors"
	"github.com/mailcat/mailcat/internal/logger"
	"github.com/mailcat/mailcat/internal/models"
)

type fakeIngest struct {
	known     map[string]bool
	maxBytes  int
	delivered []deliveredMessage
	failWith  error
}

type deliveredMessage struct {
	from string
	rcpt string
	raw  string
}

func (f *fakeIngest) Deliver(ctx context.Context, from, rcpt, raw string) (*models.Email, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.delivered = append(f.delivered, deliveredMessage{from: from, rcpt: rcpt, raw: raw})
	return &models.Email{ID: "email_test"}, nil
}

func (f *fakeIngest) KnownRecipient(ctx context.Context, rcpt string) bool {
	return f.known[strings.ToLower(rcpt)]
}

func (f *fakeIngest) MaxMessageBytes() int {
	return f.maxBytes
}

// startSession wires a session to one end of a pipe and returns a
// reader/writer for the client side.
func startSession(t *testing.T, ingest *fakeIngest) (*bufio.Reader, net.Conn) {
	t.Helper()

	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()

	serverConn, clientConn := net.Pipe()
	session := NewSession(serverConn, "mx.test.local", appLogger, ingest)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		session.Handle(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		clientConn.Close()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("session did not exit")
		}
	})

	return bufio.NewReader(clientConn), clientConn
}

func sendLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	_, err := conn.Write([]byte(line + "\r\n"))
	require.NoError(t, err)
}

func readLine(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\r\n")
}

func readMultiline(t *testing.T, reader *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line := readLine(t, reader)
		lines = append(lines, line)
		if len(line) < 4 || line[3] != '-' {
			return lines
		}
	}
}

func newFakeIngest() *fakeIngest {
	return &fakeIngest{
		known:    map[string]bool{"swift-coral-42@mailcat.ai": true},
		maxBytes: 1024,
	}
}

func TestSession_Greeting(t *testing.T) {
	reader, _ := startSession(t, newFakeIngest())
	assert.True(t, strings.HasPrefix(readLine(t, reader), "220 mx.test.local"))
}

func TestSession_EHLOAdvertisesSize(t *testing.T) {
	reader, conn := startSession(t, newFakeIngest())
	readLine(t, reader)

	sendLine(t, conn, "EHLO client.example.com")
	lines := readMultiline(t, reader)
	assert.Contains(t, lines, "250-SIZE 1024")
	assert.Equal(t, "250 OK", lines[len(lines)-1])
}

func TestSession_FullDelivery(t *testing.T) {
	ingest := newFakeIngest()
	reader, conn := startSession(t, ingest)
	readLine(t, reader)

	sendLine(t, conn, "HELO client")
	readLine(t, reader)

	sendLine(t, conn, "MAIL FROM:<sender@acme.com>")
	assert.Equal(t, "250 OK", readLine(t, reader))

	sendLine(t, conn, "RCPT TO:<swift-coral-42@mailcat.ai>")
	assert.Equal(t, "250 OK", readLine(t, reader))

	sendLine(t, conn, "DATA")
	assert.True(t, strings.HasPrefix(readLine(t, reader), "354"))

	sendLine(t, conn, "Subject: hello")
	sendLine(t, conn, "")
	sendLine(t, conn, "body line")
	sendLine(t, conn, "..stuffed")
	sendLine(t, conn, ".")
	assert.True(t, strings.HasPrefix(readLine(t, reader), "250"))

	require.Len(t, ingest.delivered, 1)
	assert.Equal(t, "sender@acme.com", ingest.delivered[0].from)
	assert.Equal(t, "swift-coral-42@mailcat.ai", ingest.delivered[0].rcpt)
	assert.Contains(t, ingest.delivered[0].raw, "Subject: hello")
	assert.Contains(t, ingest.delivered[0].raw, ".stuffed")
	assert.NotContains(t, ingest.delivered[0].raw, "..stuffed")
}

func TestSession_RejectsUnknownRecipient(t *testing.T) {
	reader, conn := startSession(t, newFakeIngest())
	readLine(t, reader)

	sendLine(t, conn, "HELO client")
	readLine(t, reader)
	sendLine(t, conn, "MAIL FROM:<sender@acme.com>")
	readLine(t, reader)

	sendLine(t, conn, "RCPT TO:<nobody@mailcat.ai>")
	assert.True(t, strings.HasPrefix(readLine(t, reader), "550"))
}

func TestSession_CommandsOutOfOrder(t *testing.T) {
	reader, conn := startSession(t, newFakeIngest())
	readLine(t, reader)

	sendLine(t, conn, "MAIL FROM:<sender@acme.com>")
	assert.True(t, strings.HasPrefix(readLine(t, reader), "503"))

	sendLine(t, conn, "RCPT TO:<swift-coral-42@mailcat.ai>")
	assert.True(t, strings.HasPrefix(readLine(t, reader), "503"))

	sendLine(t, conn, "DATA")
	assert.True(t, strings.HasPrefix(readLine(t, reader), "503"))
}

func TestSession_OversizedMessage(t *testing.T) {
	ingest := newFakeIngest()
	ingest.maxBytes = 32
	reader, conn := startSession(t, ingest)
	readLine(t, reader)

	sendLine(t, conn, "HELO client")
	readLine(t, reader)
	sendLine(t, conn, "MAIL FROM:<sender@acme.com>")
	readLine(t, reader)
	sendLine(t, conn, "RCPT TO:<swift-coral-42@mailcat.ai>")
	readLine(t, reader)
	sendLine(t, conn, "DATA")
	readLine(t, reader)

	sendLine(t, conn, strings.Repeat("x", 64))
	sendLine(t, conn, ".")
	assert.True(t, strings.HasPrefix(readLine(t, reader), "552"))
	assert.Empty(t, ingest.delivered)
}

func TestSession_MailboxExpiredBetweenRcptAndData(t *testing.T) {
	ingest := newFakeIngest()
	reader, conn := startSession(t, ingest)
	readLine(t, reader)

	sendLine(t, conn, "HELO client")
	readLine(t, reader)
	sendLine(t, conn, "MAIL FROM:<sender@acme.com>")
	readLine(t, reader)
	sendLine(t, conn, "RCPT TO:<swift-coral-42@mailcat.ai>")
	readLine(t, reader)

	ingest.failWith = er.ErrUnknownRecipient

	sendLine(t, conn, "DATA")
	readLine(t, reader)
	sendLine(t, conn, "body")
	sendLine(t, conn, ".")
	assert.True(t, strings.HasPrefix(readLine(t, reader), "550"))
}

func TestSession_RsetAndQuit(t *testing.T) {
	reader, conn := startSession(t, newFakeIngest())
	readLine(t, reader)

	sendLine(t, conn, "HELO client")
	readLine(t, reader)
	sendLine(t, conn, "MAIL FROM:<sender@acme.com>")
	readLine(t, reader)
	sendLine(t, conn, "RSET")
	assert.Equal(t, "250 OK", readLine(t, reader))

	// Transaction state is gone after RSET.
	sendLine(t, conn, "RCPT TO:<swift-coral-42@mailcat.ai>")
	assert.True(t, strings.HasPrefix(readLine(t, reader), "503"))

	sendLine(t, conn, "QUIT")
	assert.True(t, strings.HasPrefix(readLine(t, reader), "221"))
}

func TestExtractAddress(t *testing.T) {
	assert.Equal(t, "a@b.com", extractAddress("<a@b.com>"))
	assert.Equal(t, "a@b.com", extractAddress(" a@b.com "))
	assert.Equal(t, "a@b.com", extractAddress("<a@b.com> SIZE=1000"))
	assert.Equal(t, "a@b.com", extractAddress("a@b.com SIZE=1000"))
	assert.Equal(t, "", extractAddress("<unclosed"))
}
