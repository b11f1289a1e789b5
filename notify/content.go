package notify

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
)

var (
	emailPolicy = newEmailPolicy()

	invitationTmpl = template.Must(template.New("invitation").Parse(`<h2>You've been invited to review and sign an agreement</h2>
<p><strong>{{.SenderName}}</strong> has shared the agreement "<strong>{{.AgreementTitle}}</strong>" with you for review and signature.</p>
<ol>
<li>Open the link below to review the agreement</li>
<li>Read through all terms and conditions</li>
<li>Provide your signature to proceed</li>
</ol>
<p><a href="{{.InviteLink}}">Review Agreement</a></p>
<p>Agreement ID: {{.AgreementID}}</p>`))

	signatureRequestTmpl = template.Must(template.New("signature_request").Parse(`<h2>Your signature is required</h2>
<p>The agreement "<strong>{{.AgreementTitle}}</strong>" is waiting for your signature.</p>
<p><a href="{{.InviteLink}}">Sign Agreement</a></p>
<p>Agreement ID: {{.AgreementID}}</p>`))

	completedTmpl = template.Must(template.New("completed").Parse(`<h2>Agreement completed</h2>
<p>The agreement "<strong>{{.AgreementTitle}}</strong>" has been signed by all parties.</p>
<p><a href="{{.InviteLink}}">View Final Document</a></p>
<p>Agreement ID: {{.AgreementID}}</p>`))

	fallbackTmpl = template.Must(template.New("fallback").Parse(`<p>You have a new notification regarding the agreement "{{.AgreementTitle}}".</p>`))
)

func newEmailPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("h2", "p", "strong", "em", "ol", "ul", "li", "br")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "http")
	p.RequireNoReferrerOnLinks(true)
	return p
}

// Content renders the subject line and sanitised HTML body for msg.
func Content(msg Message) (subject, html string) {
	tmpl := fallbackTmpl
	switch msg.Type {
	case TypeInvitation:
		subject = "Agreement Invitation: " + msg.AgreementTitle
		tmpl = invitationTmpl
	case TypeSignatureRequest:
		subject = "Signature Required: " + msg.AgreementTitle
		tmpl = signatureRequestTmpl
	case TypeCompleted:
		subject = "Agreement Completed: " + msg.AgreementTitle
		tmpl = completedTmpl
	default:
		subject = "Agreement Notification: " + msg.AgreementTitle
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, msg); err != nil {
		return subject, ""
	}
	return subject, emailPolicy.Sanitize(buf.String())
}
