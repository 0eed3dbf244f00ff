package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"inphrone-backend/internal/features/notification/models"
)

// templateData is what every template sees. Data holds the request specific
// values, e.g. {{.Data.streak_days}}.
type templateData struct {
	Name           string
	AppURL         string
	UnsubscribeURL string
	Data           map[string]interface{}
}

type emailTemplate struct {
	subject  *texttemplate.Template
	body     *htmltemplate.Template
	required []string
}

const layout = `{{define "layout"}}<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#0f0f14;font-family:Arial,Helvetica,sans-serif;color:#f5f5f7;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:32px 16px;">
<table role="presentation" width="560" cellpadding="0" cellspacing="0" style="background:#1a1a23;border-radius:12px;padding:32px;">
<tr><td>
<h1 style="margin:0 0 16px;font-size:22px;color:#a78bfa;">Inphrone</h1>
<p style="margin:0 0 16px;">Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
{{template "content" .}}
<p style="margin:24px 0 0;"><a href="{{.AppURL}}" style="color:#a78bfa;">Open Inphrone</a></p>
</td></tr>
</table>
<p style="font-size:12px;color:#8b8b99;margin:16px 0 0;">You receive this because you have an Inphrone account.
<a href="{{.UnsubscribeURL}}" style="color:#8b8b99;">Unsubscribe</a></p>
</td></tr>
</table>
</body>
</html>{{end}}`

var sources = map[models.EmailType]struct {
	subject  string
	content  string
	// required Data keys
	required []string
}{
	models.EmailWelcome: {
		subject: "Welcome to Inphrone{{if .Name}}, {{.Name}}{{end}}",
		content: `<p>Your voice now shapes what gets made next. Share an opinion, answer today's InphroSync and try to win a Your Turn slot.</p>`,
	},
	models.EmailPasswordReset: {
		subject: "Reset your Inphrone password",
		content: `<p>Use the link below to choose a new password. It expires soon.</p>
<p><a href="{{.Data.reset_url}}" style="color:#a78bfa;">Reset password</a></p>`,
		required: []string{"reset_url"},
	},
	models.EmailVerification: {
		subject: "Confirm your email",
		content: `<p>Confirm this address to receive Inphrone updates.</p>
<p><a href="{{.Data.verification_url}}" style="color:#a78bfa;">Confirm email</a></p>`,
		required: []string{"verification_url"},
	},
	models.EmailOpinionLiked: {
		subject: "Your opinion got an upvote",
		content: `<p>{{if .Data.liker_name}}{{.Data.liker_name}}{{else}}Someone{{end}} upvoted "{{.Data.opinion_title}}".
It now has {{.Data.upvotes}} upvotes.</p>`,
		required: []string{"opinion_title"},
	},
	models.EmailStreakAchievement: {
		subject:  "{{.Data.streak_days}} day streak!",
		content:  `<p>You have been active for {{.Data.streak_days}} days in a row. Keep it going tomorrow.</p>`,
		required: []string{"streak_days"},
	},
	models.EmailBadgeEarned: {
		subject:  "New badge: {{.Data.badge_name}}",
		content:  `<p>You earned the <strong>{{.Data.badge_name}}</strong> badge.</p>`,
		required: []string{"badge_name"},
	},
	models.EmailInphroSyncReminder: {
		subject: "Today's InphroSync is live",
		content: `<p>Three quick questions are waiting. See how your answers compare with everyone else.</p>`,
	},
	models.EmailWeeklyDigest: {
		subject: "Your week on Inphrone",
		content: `<p>This week you shared {{or .Data.opinions 0}} opinions and received {{or .Data.upvotes 0}} upvotes.</p>`,
	},
	models.EmailMilestone: {
		subject:  "Milestone reached",
		content:  `<p>{{.Data.message}}</p>`,
		required: []string{"message"},
	},
	models.EmailIndustryRecognition: {
		subject:  "The industry noticed your opinion",
		content:  `<p>{{if .Data.company}}{{.Data.company}}{{else}}An industry member{{end}} highlighted "{{.Data.opinion_title}}".</p>`,
		required: []string{"opinion_title"},
	},
	models.EmailBroadcast: {
		subject:  "{{.Data.subject}}",
		content:  `<p>{{.Data.message}}</p>`,
		required: []string{"subject", "message"},
	},
}

// parseTemplates compiles one subject and one body per known type
func parseTemplates() (map[models.EmailType]emailTemplate, error) {
	out := make(map[models.EmailType]emailTemplate, len(sources))
	for t, src := range sources {
		subject, err := texttemplate.New(string(t)).Option("missingkey=zero").Parse(src.subject)
		if err != nil {
			return nil, fmt.Errorf("parse %s subject: %w", t, err)
		}
		body, err := htmltemplate.New(string(t)).Option("missingkey=zero").Parse(layout)
		if err != nil {
			return nil, fmt.Errorf("parse layout: %w", err)
		}
		if _, err := body.New("content").Parse(src.content); err != nil {
			return nil, fmt.Errorf("parse %s body: %w", t, err)
		}
		out[t] = emailTemplate{subject: subject, body: body, required: src.required}
	}
	return out, nil
}

// missing returns the first required key absent from data
func (t emailTemplate) missing(data map[string]interface{}) (string, bool) {
	for _, key := range t.required {
		if v, ok := data[key]; !ok || v == nil || v == "" {
			return key, true
		}
	}
	return "", false
}

func (t emailTemplate) render(data templateData) (subject, html string, err error) {
	var buf bytes.Buffer
	if err := t.subject.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	subject = buf.String()

	buf.Reset()
	if err := t.body.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return subject, buf.String(), nil
}
