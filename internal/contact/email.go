package contact

import (
	"bytes"
	"html/template"

	"github.com/addynoven/portfolio-web/internal/xerrors"
)

var emailTmpl = template.Must(template.New("contact").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #00ff99; border-bottom: 2px solid #00ff99; padding-bottom: 10px;">New Contact Form Submission</h2>
  <table style="width: 100%; border-collapse: collapse; margin-top: 20px;">
    <tr>
      <td style="padding: 10px; border-bottom: 1px solid #eee; font-weight: bold; width: 120px;">Name:</td>
      <td style="padding: 10px; border-bottom: 1px solid #eee;">{{.FirstName}} {{.LastName}}</td>
    </tr>
    <tr>
      <td style="padding: 10px; border-bottom: 1px solid #eee; font-weight: bold;">Email:</td>
      <td style="padding: 10px; border-bottom: 1px solid #eee;"><a href="mailto:{{.Email}}">{{.Email}}</a></td>
    </tr>
    {{- if .Phone}}
    <tr>
      <td style="padding: 10px; border-bottom: 1px solid #eee; font-weight: bold;">Phone:</td>
      <td style="padding: 10px; border-bottom: 1px solid #eee;">{{.Phone}}</td>
    </tr>
    {{- end}}
    {{- if .Service}}
    <tr>
      <td style="padding: 10px; border-bottom: 1px solid #eee; font-weight: bold;">Service:</td>
      <td style="padding: 10px; border-bottom: 1px solid #eee;">{{.Service}}</td>
    </tr>
    {{- end}}
  </table>
  <div style="margin-top: 20px;">
    <h3 style="color: #333;">Message:</h3>
    <div style="background: #f5f5f5; padding: 15px; border-radius: 8px; white-space: pre-wrap;">{{.Message}}</div>
  </div>
  <p style="margin-top: 30px; color: #666; font-size: 12px;">Sent from your portfolio contact form &bull; IP: {{.ClientIP}}</p>
</div>
`))

// RenderHTML renders the notification email body. All submitted fields are
// escaped.
func RenderHTML(s Submission) (string, error) {
	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, s); err != nil {
		return "", xerrors.Wrap(err, "render contact email")
	}
	return buf.String(), nil
}
