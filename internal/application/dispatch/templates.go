package dispatch

import (
	htmltemplate "html/template"
	"io"
	texttemplate "text/template"

	"github.com/go-token-nosql/internal/domain"
)

type templateData struct {
	Name string
	Link string
	Code string
	Date string
	Time string
}

type messageTemplate struct {
	subject string
	execute func(w io.Writer, data templateData) error
}

func htmlMessage(subject, body string) messageTemplate {
	t := htmltemplate.Must(htmltemplate.New(subject).Parse(body))
	return messageTemplate{subject: subject, execute: func(w io.Writer, d templateData) error { return t.Execute(w, d) }}
}

func textMessage(body string) messageTemplate {
	t := texttemplate.Must(texttemplate.New("sms").Parse(body))
	return messageTemplate{execute: func(w io.Writer, d templateData) error { return t.Execute(w, d) }}
}

var templates = map[domain.Purpose]messageTemplate{
	domain.PurposeEmailVerify: htmlMessage("Account Verification", `<h2>Hello {{.Name}}</h2>
<p>Please verify your account by clicking the link:</p>
<a href="{{.Link}}" target="_blank">Click Here</a>
<br>
<p>This link will expire on <b>{{.Date}}</b> at <b>{{.Time}}</b></p>
`),
	domain.PurposePasswordResetEmail: htmlMessage("Forgot Password", `<h2>Hello {{.Name}}</h2>
<p>Here is your one time password (OTP) to change your forgotten password:</p>
<b style="letter-spacing: 2px;">{{.Code}}</b>
<br>
<p>This code will expire on <b>{{.Date}}</b> at <b>{{.Time}}</b></p>
`),
	domain.PurposePhoneVerify: textMessage(`Hello {{.Name}},

Please verify your phone number by opening the link below:

{{.Link}}

This link will expire on {{.Date}} at {{.Time}}.`),
	domain.PurposePasswordResetPhone: textMessage(`Hello {{.Name}},

Here is your one time password (OTP) to change your forgotten password:

{{.Code}}

This code will expire on {{.Date}} at {{.Time}}.`),
}
