package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

var (
	welcomeHTML = template.Must(template.New("welcome").Parse(
		`<p>Hello {{.Name}},</p><p>Welcome to Touris. Your account is ready.</p>`))
	resetHTML = template.Must(template.New("reset").Parse(
		`<p>Hello {{.Name}},</p><p><a href="{{.Link}}">Reset your password</a>. The link expires at {{.Expires}}.</p>` +
			`<p>If you did not ask for this you can ignore this email.</p>`))
)

// Render turns a queued message into an email.
func Render(msg Message) (Email, error) {
	name := msg.Name
	if name == "" {
		name = msg.To
	}

	switch msg.Kind {
	case KindWelcome:
		html, err := execute(welcomeHTML, map[string]string{"Name": name})
		if err != nil {
			return Email{}, err
		}
		return Email{
			To:      msg.To,
			Subject: "Welcome to Touris",
			Text:    fmt.Sprintf("Hello %s,\n\nWelcome to Touris. Your account is ready.\n", name),
			HTML:    html,
		}, nil
	case KindPasswordReset:
		expires := msg.ExpiresAt.UTC().Format(time.RFC1123)
		html, err := execute(resetHTML, map[string]string{"Name": name, "Link": msg.Link, "Expires": expires})
		if err != nil {
			return Email{}, err
		}
		return Email{
			To:      msg.To,
			Subject: "Reset your Touris password",
			Text: fmt.Sprintf("Hello %s,\n\nReset your password here: %s\nThe link expires at %s.\n",
				name, msg.Link, expires),
			HTML: html,
		}, nil
	}
	return Email{}, fmt.Errorf("unknown message kind %q", msg.Kind)
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
