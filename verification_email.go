package signup

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

var verificationEmailHTML = template.Must(template.New("verify").Parse(
	`<div style="font-family:Arial,Helvetica,sans-serif;line-height:1.6;color:#0f172a;max-width:560px;">` +
		`<h2 style="margin:0 0 12px 0;">Verify your {{.Product}} email</h2>` +
		`<p style="margin:0 0 14px 0;">Thanks for signing up for {{.Product}}. Please verify your email address to continue.</p>` +
		`<p style="margin:0 0 18px 0;"><a href="{{.URL}}" style="display:inline-block;background:#22d3ee;color:#082f49;text-decoration:none;font-weight:700;padding:10px 16px;border-radius:8px;">Verify Email</a></p>` +
		`<p style="margin:0 0 10px 0;">This verification link expires in {{.Hours}} hours.</p>` +
		`<p style="margin:0;color:#334155;">If the button does not work, paste this URL in your browser:<br/><a href="{{.URL}}" style="color:#0ea5e9;word-break:break-all;">{{.URL}}</a></p>` +
		`</div>`,
))

type verificationEmailData struct {
	Product string
	URL     string
	Hours   int
}

func buildVerificationMessage(to, product, verificationURL string, ttl time.Duration) Message {
	data := verificationEmailData{
		Product: product,
		URL:     verificationURL,
		Hours:   int(ttl / time.Hour),
	}

	var html bytes.Buffer
	if err := verificationEmailHTML.Execute(&html, data); err != nil {
		html.Reset()
	}

	text := strings.Join([]string{
		fmt.Sprintf("Welcome to %s.", product),
		"Please verify your email address to continue.",
		"",
		"Verify now: " + verificationURL,
		"",
		fmt.Sprintf("This link expires in %d hours.", data.Hours),
	}, "\n")

	return Message{
		To:      to,
		Subject: fmt.Sprintf("Action required: verify your %s email", product),
		HTML:    html.String(),
		Text:    text,
	}
}
