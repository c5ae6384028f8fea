package templates

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"
)

// MagicLinkData feeds the login email.
type MagicLinkData struct {
	AppName string
	Link    string
	Code    string
	TTL     time.Duration
}

// MagicLink renders the one-time login email.
func MagicLink(d MagicLinkData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		appName := templ.EscapeString(d.AppName)
		link := templ.EscapeString(string(templ.URL(d.Link)))

		parts := []string{
			`<!DOCTYPE html><html><head><meta charset="utf-8"><title>Sign in to `, appName, `</title></head>`,
			`<body style="font-family:-apple-system,Helvetica,Arial,sans-serif;color:#1f2937;background:#f9fafb;padding:24px">`,
			`<table role="presentation" width="100%" style="max-width:560px;margin:0 auto;background:#ffffff;border-radius:8px;padding:32px">`,
			`<tr><td><h1 style="font-size:20px;margin:0 0 16px">Sign in to `, appName, `</h1>`,
			`<p style="margin:0 0 24px">Click the button below to finish signing in.</p>`,
			`<p style="margin:0 0 24px"><a href="`, link, `" style="display:inline-block;padding:12px 20px;background:#2563eb;color:#ffffff;text-decoration:none;border-radius:6px">Sign in</a></p>`,
		}
		if d.Code != "" {
			parts = append(parts,
				`<p style="margin:0 0 8px;color:#6b7280">Or use this code:</p>`,
				`<p style="font-family:monospace;font-size:18px;margin:0 0 24px">`, templ.EscapeString(d.Code), `</p>`,
			)
		}
		if d.TTL > 0 {
			parts = append(parts,
				`<p style="margin:0;color:#6b7280;font-size:13px">The link expires in `, formatTTL(d.TTL),
				` and can be used once. If you did not ask to sign in, ignore this email.</p>`,
			)
		}
		parts = append(parts, `</td></tr></table></body></html>`)

		for _, p := range parts {
			if _, err := io.WriteString(w, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func formatTTL(d time.Duration) string {
	if m := int(d.Minutes()); m >= 1 {
		if m == 1 {
			return "1 minute"
		}
		return strconv.Itoa(m) + " minutes"
	}
	return strconv.Itoa(int(d.Seconds())) + " seconds"
}
