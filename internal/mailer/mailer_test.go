package mailer

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testEmail() PasswordResetEmail {
	return PasswordResetEmail{
		To:        "ann@x.com",
		Name:      "Ann",
		ResetURL:  "http://localhost:3000/reset?token=abc123",
		ExpiresIn: time.Hour,
	}
}

func TestRenderPasswordReset(t *testing.T) {
	html, text, err := renderPasswordReset(testEmail())
	require.NoError(t, err)

	assert.Contains(t, html, `href="http://localhost:3000/reset?token=abc123"`)
	assert.Contains(t, html, "Hello Ann,")
	assert.Contains(t, html, "expires in 1 hour")
	assert.Contains(t, text, "http://localhost:3000/reset?token=abc123")
	assert.Contains(t, text, "expires in 1 hour")
}

func TestRenderPasswordReset_EscapesName(t *testing.T) {
	msg := testEmail()
	msg.Name = "<script>"
	html, _, err := renderPasswordReset(msg)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestHumanizeDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{time.Hour, "1 hour"},
		{2 * time.Hour, "2 hours"},
		{30 * time.Minute, "30 minutes"},
		{90 * time.Second, "2 minutes"},
		{time.Minute, "1 minute"},
		{0, "a short while"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, humanizeDuration(tt.in), tt.in.String())
	}
}

func TestBuildMessage(t *testing.T) {
	raw, err := buildMessage("Tidy Tasks <no-reply@tidytasks.dev>", "ann@x.com", resetSubject, "plain body", "<p>html body</p>")
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, "ann@x.com", msg.Header.Get("To"))
	assert.Equal(t, resetSubject, msg.Header.Get("Subject"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])
	var types []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		types = append(types, p.Header.Get("Content-Type"))
		body, err := io.ReadAll(p)
		require.NoError(t, err)
		assert.NotEmpty(t, body)
	}
	assert.Equal(t, []string{"text/plain; charset=UTF-8", "text/html; charset=UTF-8"}, types)
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewLogMailer(zap.New(core))

	require.NoError(t, m.SendPasswordReset(context.Background(), testEmail()))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ann@x.com", fields["to"])
	assert.Equal(t, "http://localhost:3000/reset?token=abc123", fields["reset_url"])
}

func TestNew_SelectsImplementation(t *testing.T) {
	logger := zap.NewNop()

	assert.IsType(t, &LogMailer{}, New(Config{}, logger))
	assert.IsType(t, &SMTPMailer{}, New(Config{SMTP: SMTPConfig{Host: "smtp.example.com"}, From: "a@b.c"}, logger))
	assert.IsType(t, &SendGridMailer{}, New(Config{SendGridAPIKey: "SG.key", SMTP: SMTPConfig{Host: "smtp.example.com"}}, logger))
}

func TestNew_SMTPInheritsFrom(t *testing.T) {
	m := New(Config{SMTP: SMTPConfig{Host: "smtp.example.com"}, From: "no-reply@tidytasks.dev", FromName: "Tidy Tasks"}, zap.NewNop())
	smtpMailer, ok := m.(*SMTPMailer)
	require.True(t, ok)
	assert.Equal(t, "587", smtpMailer.cfg.Port)
	assert.Equal(t, "Tidy Tasks <no-reply@tidytasks.dev>", smtpMailer.fromHeader())
}

func TestSendGridMailer(t *testing.T) {
	var gotPath, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewSendGridMailer("SG.test", "no-reply@tidytasks.dev", "Tidy Tasks")
	m.client.BaseURL = srv.URL + "/v3/mail/send"

	require.NoError(t, m.SendPasswordReset(context.Background(), testEmail()))
	assert.Equal(t, "/v3/mail/send", gotPath)
	assert.Equal(t, "Bearer SG.test", gotAuth)
	assert.Contains(t, gotBody, "ann@x.com")
	assert.Contains(t, gotBody, resetSubject)
}

func TestSendGridMailer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	m := NewSendGridMailer("SG.bad", "no-reply@tidytasks.dev", "")
	m.client.BaseURL = srv.URL + "/v3/mail/send"

	err := m.SendPasswordReset(context.Background(), testEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
