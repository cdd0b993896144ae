package contact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/addynoven/portfolio-web/internal/httpmw"
	"github.com/addynoven/portfolio-web/internal/log"
	"github.com/addynoven/portfolio-web/internal/ratelimit"
	"github.com/addynoven/portfolio-web/internal/xerrors"
)

// Outcomes reported to Options.OnOutcome.
const (
	OutcomeSent         = "sent"
	OutcomeInvalid      = "invalid"
	OutcomeRateLimited  = "rate_limited"
	OutcomeUnconfigured = "unconfigured"
	OutcomeSendFailed   = "send_failed"
)

const (
	msgSent         = "Your message has been sent successfully!"
	msgUnconfigured = "Email service is not configured"
	msgSendFailed   = "Failed to send email. Please try again."
	msgEmailLimit   = "You've already sent a message recently. Please try again in %s."
	msgIPLimit      = "Too many messages from your network. Please try again in %s."

	defaultMaxBody        = 64 << 10
	defaultArchiveTimeout = 5 * time.Second
)

// Limiter is the submission limiter as seen by the handler.
type Limiter interface {
	Check(email, ip string) ratelimit.Result
	Record(email, ip string)
}

type Options struct {
	Logger  log.Logger
	Limiter Limiter

	// Sender nil means email delivery is not configured; submissions are
	// answered with 500 and never recorded.
	Sender Sender

	// Archiver is optional.
	Archiver Archiver

	// OnOutcome is called once per request with one of the Outcome constants.
	OnOutcome func(outcome string)

	MaxBodyBytes int64
	Now          func() time.Time
	NewID        func() string
}

// API implements POST /api/contact.
type API struct {
	opts   Options
	logger log.Logger
}

func NewAPI(opts Options) (*API, error) {
	if opts.Limiter == nil {
		return nil, xerrors.New("contact: limiter is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &API{opts: opts, logger: opts.Logger}, nil
}

// RegisterRoutes attaches the contact endpoint to the router.
func (api *API) RegisterRoutes(r chi.Router) {
	r.With(httpmw.MaxBody(api.opts.MaxBodyBytes), httpmw.Scope("contact")).
		Post("/api/contact", api.HandleSubmit)
}

type response struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	RateLimited bool   `json:"rateLimited,omitempty"`
}

// HandleSubmit validates, rate limits, sends and records one submission.
func (api *API) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	L := log.FromContext(ctx)

	form, err := Decode(r.Body)
	if err != nil {
		var p Problem
		if !errors.As(err, &p) {
			p = ErrInvalidBody
		}
		L.Debug(ctx, "contact submission rejected", "reason", string(p))
		api.outcome(ctx, OutcomeInvalid)
		api.writeJSON(ctx, w, http.StatusBadRequest, response{Error: string(p)})
		return
	}

	ip := httpmw.ClientIPFromContext(ctx)
	if ip == "" {
		ip = httpmw.UnknownClientIP
	}

	if res := api.opts.Limiter.Check(form.Email, ip); !res.Allowed {
		retry := res.RetryAfter
		if retry <= 0 {
			retry = ratelimit.DefaultWindow
		}
		msg := msgIPLimit
		if res.Reason == ratelimit.ReasonEmail {
			msg = msgEmailLimit
		}
		L.Info(ctx, "contact submission rate limited",
			"reason", string(res.Reason),
			"retry_after", retry.String(),
		)
		api.outcome(ctx, OutcomeRateLimited)
		w.Header().Set("Retry-After", strconv.FormatInt(ratelimit.RetryAfterSeconds(retry), 10))
		api.writeJSON(ctx, w, http.StatusTooManyRequests, response{
			Error:       fmt.Sprintf(msg, ratelimit.FormatRetryAfter(retry)),
			RateLimited: true,
		})
		return
	}

	if api.opts.Sender == nil {
		L.Error(ctx, xerrors.New("email sender not configured"), "contact submission dropped")
		api.outcome(ctx, OutcomeUnconfigured)
		api.writeJSON(ctx, w, http.StatusInternalServerError, response{Error: msgUnconfigured})
		return
	}

	sub := Submission{
		Form:       form,
		ID:         api.opts.NewID(),
		ClientIP:   ip,
		ReceivedAt: api.opts.Now().UTC(),
	}
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("contact.submission_id", sub.ID))
	}

	msgID, err := api.opts.Sender.Send(ctx, sub)
	if err != nil {
		L.Error(ctx, err, "contact email send failed", "submission_id", sub.ID)
		api.outcome(ctx, OutcomeSendFailed)
		api.writeJSON(ctx, w, http.StatusInternalServerError, response{Error: msgSendFailed})
		return
	}

	api.opts.Limiter.Record(form.Email, ip)
	L.Info(ctx, "contact email sent", "submission_id", sub.ID, "provider_message_id", msgID)
	api.outcome(ctx, OutcomeSent)

	api.archive(ctx, sub)

	api.writeJSON(ctx, w, http.StatusOK, response{Success: true, Message: msgSent})
}

// archive stores sub best-effort. The email is already out, so failures are
// only logged.
func (api *API) archive(ctx context.Context, sub Submission) {
	if api.opts.Archiver == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultArchiveTimeout)
	defer cancel()
	if err := api.opts.Archiver.Archive(actx, sub); err != nil {
		log.FromContext(ctx).Warn(ctx, "contact archive failed", "submission_id", sub.ID, "err", err)
	}
}

func (api *API) outcome(ctx context.Context, o string) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("contact.outcome", o))
	}
	if api.opts.OnOutcome != nil {
		api.opts.OnOutcome(o)
	}
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}
