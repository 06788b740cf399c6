package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"math"
	texttemplate "text/template"
	"time"
)

const resetSubject = "Reset your password"

var resetHTML = htmltemplate.Must(htmltemplate.New("reset.html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; line-height: 1.5;">
  <p>Hello {{.Name}},</p>
  <p>We received a request to reset your password. Click the button below to choose a new one.</p>
  <p><a href="{{.ResetURL}}" style="display:inline-block;padding:10px 16px;background:#2563eb;color:#fff;text-decoration:none;border-radius:4px;">Reset password</a></p>
  <p>This link expires in {{.Expires}}. If you did not request a reset, you can ignore this email.</p>
</body>
</html>
`))

var resetText = texttemplate.Must(texttemplate.New("reset.txt").Parse(`Hello {{.Name}},

We received a request to reset your password. Open the link below to choose a new one:

{{.ResetURL}}

This link expires in {{.Expires}}. If you did not request a reset, you can ignore this email.
`))

type resetView struct {
	Name     string
	ResetURL string
	Expires  string
}

// renderPasswordReset はHTML本文とテキスト本文を返します。
func renderPasswordReset(msg PasswordResetEmail) (html, text string, err error) {
	view := resetView{Name: msg.Name, ResetURL: msg.ResetURL, Expires: humanizeDuration(msg.ExpiresIn)}
	if view.Name == "" {
		view.Name = "there"
	}

	var h, t bytes.Buffer
	if err := resetHTML.Execute(&h, view); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	if err := resetText.Execute(&t, view); err != nil {
		return "", "", fmt.Errorf("render text: %w", err)
	}
	return h.String(), t.String(), nil
}

func humanizeDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short while"
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(math.Ceil(d.Minutes())), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
