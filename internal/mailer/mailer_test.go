package mailer

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRelay accepts one SMTP session and records the envelope and data.
type fakeRelay struct {
	addr  string
	rcpts chan []string
	data  chan string
}

func startFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	r := &fakeRelay{addr: ln.Addr().String(), rcpts: make(chan []string, 1), data: make(chan string, 1)}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		rd := bufio.NewReader(conn)
		reply := func(s string) { conn.Write([]byte(s + "\r\n")) }

		reply("220 fake ESMTP")
		var rcpts []string
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 fake")
			case strings.HasPrefix(cmd, "MAIL FROM"), cmd == "RSET", cmd == "NOOP":
				reply("250 ok")
			case strings.HasPrefix(cmd, "RCPT TO"):
				rcpts = append(rcpts, strings.Trim(strings.TrimSpace(line)[len("RCPT TO:"):], "<>"))
				reply("250 ok")
			case cmd == "DATA":
				reply("354 go ahead")
				var body strings.Builder
				for {
					l, err := rd.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					body.WriteString(l)
				}
				r.rcpts <- rcpts
				r.data <- body.String()
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("502 unsupported")
			}
		}
	}()
	return r
}

func plainSMTP(t *testing.T, relay *fakeRelay) *SMTP {
	t.Helper()
	host, port, err := net.SplitHostPort(relay.addr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	s := NewSMTP(Config{Host: host, Port: p, From: "blog@example.com", Mode: ModeNone, Timeout: 5 * time.Second})
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestSendOverPlainRelay(t *testing.T) {
	relay := startFakeRelay(t)
	s := plainSMTP(t, relay)

	msg := ContactMessage("Ann", "ann@example.com", "555-1234", "Hello there\nSecond line", "owner@example.com")
	require.NoError(t, s.Send(context.Background(), msg))

	assert.Equal(t, []string{"ann@example.com", "owner@example.com"}, <-relay.rcpts)
	data := <-relay.data
	assert.Contains(t, data, "Subject: Ann , 555-1234\r\n")
	assert.Regexp(t, `(?m)^From: <?blog@example\.com>?\r$`, data)
	assert.Regexp(t, `(?m)^Reply-To: <?ann@example\.com>?\r$`, data)
	assert.Contains(t, data, "Date: Tue, 02 Jan 2024 03:04:05 +0000")
	assert.Contains(t, data, "Hello there\r\nSecond line")
}

func TestSendFlattensSubjectLineBreaks(t *testing.T) {
	relay := startFakeRelay(t)
	s := plainSMTP(t, relay)

	msg := Message{To: []string{"a@x.com"}, Subject: "hi\r\nBcc: victim@x.com", Body: "body"}
	require.NoError(t, s.Send(context.Background(), msg))

	assert.Equal(t, []string{"a@x.com"}, <-relay.rcpts)
	data := <-relay.data
	assert.NotContains(t, data, "\r\nBcc:")
	assert.Contains(t, data, "Subject: hi  Bcc: victim@x.com")
}

func TestSendNotConfigured(t *testing.T) {
	err := NewSMTP(Config{}).Send(context.Background(), Message{To: []string{"a@x.com"}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSendDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	s := NewSMTP(Config{Host: "127.0.0.1", Port: addr.Port, From: "blog@example.com", Mode: ModeNone, Timeout: time.Second})
	err = s.Send(context.Background(), Message{To: []string{"a@x.com"}, Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial")
}

func TestSendRejectsBadAddress(t *testing.T) {
	s := NewSMTP(Config{Host: "127.0.0.1", Port: 2525, From: "blog@example.com", Mode: ModeNone})
	err := s.Send(context.Background(), Message{To: []string{"not an address"}, Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipients")
}

func TestContactMessageSkipsDuplicateInbox(t *testing.T) {
	msg := ContactMessage("Ann", "ann@example.com", "1", "b", "ANN@example.com")
	assert.Equal(t, []string{"ann@example.com"}, msg.To)
	assert.Len(t, ContactMessage("Ann", "ann@example.com", "1", "b", "").To, 1)
}

func TestLogSender(t *testing.T) {
	logger, hook := test.NewNullLogger()
	err := LogSender{Log: logger}.Send(context.Background(), Message{To: []string{"a@x.com"}, Subject: "s"})
	assert.ErrorIs(t, err, ErrNotDelivered)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
