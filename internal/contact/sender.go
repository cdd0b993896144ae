package contact

import (
	"context"
	"net/http"
	"net/url"

	"github.com/resend/resend-go/v2"

	"github.com/addynoven/portfolio-web/internal/xerrors"
)

// Sender delivers a submission and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, s Submission) (string, error)
}

// ResendSender sends submissions through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
	to     []string
}

type ResendOptions struct {
	APIKey string
	From   string
	To     string

	// HTTPClient carries the outbound transport (tracing, timeouts).
	// Defaults to a plain client.
	HTTPClient *http.Client

	// BaseURL overrides the API endpoint.
	BaseURL string
}

// NewResendSender returns nil when no API key is configured, which callers
// treat as "email not configured".
func NewResendSender(opts ResendOptions) (*ResendSender, error) {
	if opts.APIKey == "" {
		return nil, nil
	}
	if opts.To == "" {
		return nil, xerrors.New("contact recipient address is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	c := resend.NewCustomClient(hc, opts.APIKey)
	if opts.BaseURL != "" {
		u, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, xerrors.Wrapf(err, "parse resend base url %q", opts.BaseURL)
		}
		c.BaseURL = u
	}
	return &ResendSender{client: c, from: opts.From, to: []string{opts.To}}, nil
}

func (r *ResendSender) Send(ctx context.Context, s Submission) (string, error) {
	body, err := RenderHTML(s)
	if err != nil {
		return "", err
	}
	sent, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      r.to,
		ReplyTo: s.Email,
		Subject: s.Subject(),
		Html:    body,
		Tags: []resend.Tag{
			{Name: "submission_id", Value: s.ID},
		},
	})
	if err != nil {
		return "", xerrors.Wrap(err, "resend send email")
	}
	return sent.Id, nil
}
