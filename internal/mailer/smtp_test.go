package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smtpSession は fakeSMTPServer が受け取った内容です。
type smtpSession struct {
	auth string
	from string
	rcpt []string
	data []byte
}

// startFakeSMTP はループバックで1接続だけ受け付ける SMTP サーバーを起動します。
// rcptReply を指定すると RCPT TO にその応答を返します。
func startFakeSMTP(t *testing.T, rcptReply string) (SMTPConfig, <-chan smtpSession) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	sessions := make(chan smtpSession, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(5 * time.Second))
		sessions <- serveSMTP(textproto.NewConn(conn), rcptReply)
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return SMTPConfig{
		Host:     host,
		Port:     port,
		Username: "mailer",
		Password: "secret",
		From:     "no-reply@tidytasks.dev",
		FromName: "Tidy Tasks",
	}, sessions
}

func serveSMTP(c *textproto.Conn, rcptReply string) smtpSession {
	var s smtpSession
	c.PrintfLine("220 localhost ESMTP")
	for {
		line, err := c.ReadLine()
		if err != nil {
			return s
		}
		verb, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(verb) {
		case "EHLO":
			c.PrintfLine("250-localhost")
			c.PrintfLine("250 AUTH PLAIN")
		case "AUTH":
			s.auth = arg
			c.PrintfLine("235 2.7.0 Authentication successful")
		case "MAIL":
			s.from = arg
			c.PrintfLine("250 OK")
		case "RCPT":
			if rcptReply != "" {
				c.PrintfLine("%s", rcptReply)
				continue
			}
			s.rcpt = append(s.rcpt, arg)
			c.PrintfLine("250 OK")
		case "DATA":
			c.PrintfLine("354 End data with <CR><LF>.<CR><LF>")
			if s.data, err = c.ReadDotBytes(); err != nil {
				return s
			}
			c.PrintfLine("250 OK")
		case "RSET", "NOOP":
			c.PrintfLine("250 OK")
		case "QUIT":
			c.PrintfLine("221 Bye")
			return s
		default:
			c.PrintfLine("502 Command not implemented")
		}
	}
}

func TestSMTPMailer_SendPasswordReset(t *testing.T) {
	cfg, sessions := startFakeSMTP(t, "")
	m := NewSMTPMailer(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.SendPasswordReset(ctx, testEmail()))

	var s smtpSession
	select {
	case s = <-sessions:
	case <-time.After(5 * time.Second):
		t.Fatal("smtp session did not finish")
	}

	creds, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s.auth, "PLAIN "))
	require.NoError(t, err)
	assert.Equal(t, "\x00mailer\x00secret", string(creds))
	assert.Equal(t, "FROM:<no-reply@tidytasks.dev>", s.from)
	assert.Equal(t, []string{"TO:<ann@x.com>"}, s.rcpt)

	msg, err := mail.ReadMessage(bytes.NewReader(s.data))
	require.NoError(t, err)
	assert.Equal(t, "ann@x.com", msg.Header.Get("To"))
	assert.Equal(t, "Tidy Tasks <no-reply@tidytasks.dev>", msg.Header.Get("From"))
	assert.Equal(t, resetSubject, msg.Header.Get("Subject"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", mediaType)

	bodies := map[string]string{}
	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(p)
		require.NoError(t, err)
		bodies[p.Header.Get("Content-Type")] = string(b)
	}
	assert.Contains(t, bodies["text/plain; charset=UTF-8"], "http://localhost:3000/reset?token=abc123")
	assert.Contains(t, bodies["text/html; charset=UTF-8"], `href="http://localhost:3000/reset?token=abc123"`)
}

func TestSMTPMailer_RecipientRejected(t *testing.T) {
	cfg, _ := startFakeSMTP(t, "550 5.1.1 No such user")
	m := NewSMTPMailer(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.SendPasswordReset(ctx, testEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp rcpt")
}

func TestSMTPMailer_CancelledContext(t *testing.T) {
	cfg, _ := startFakeSMTP(t, "")
	m := NewSMTPMailer(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.SendPasswordReset(ctx, testEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial")
}
