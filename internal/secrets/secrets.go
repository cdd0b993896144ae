// Package secrets fills empty credentials from SSM Parameter Store.
//
// Each credential lives at <prefix>/<name> as a SecureString. Lookups are
// best effort: a missing parameter leaves the target empty so the owning
// feature degrades instead of failing startup.
package secrets

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/addynoven/portfolio-web/internal/log"
	"github.com/addynoven/portfolio-web/internal/xerrors"
)

// ErrNotFound is returned by Get when the parameter does not exist.
var ErrNotFound = errors.New("secrets: parameter not found")

// GetParameterAPI is the subset of *ssm.Client used here.
type GetParameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type SSMResolver struct {
	api    GetParameterAPI
	prefix string
	logger log.Logger
}

// NewSSMResolver returns nil when prefix is empty.
func NewSSMResolver(api GetParameterAPI, prefix string, logger log.Logger) *SSMResolver {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" || api == nil {
		return nil
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &SSMResolver{api: api, prefix: prefix, logger: logger}
}

// Path is the full parameter name for a credential.
func (r *SSMResolver) Path(name string) string {
	return r.prefix + "/" + strings.TrimLeft(name, "/")
}

// Get returns the decrypted, trimmed value of one parameter.
func (r *SSMResolver) Get(ctx context.Context, name string) (string, error) {
	p := r.Path(name)
	out, err := r.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(p),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var nf *types.ParameterNotFound
		if errors.As(err, &nf) {
			return "", ErrNotFound
		}
		return "", xerrors.Wrapf(err, "get SSM parameter %s", p)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", p)
	}
	return strings.TrimSpace(*out.Parameter.Value), nil
}

// Fill resolves every target that is still empty. Values already set by
// flags or env win. Missing parameters are skipped; other errors are joined
// and returned after all targets were tried.
func (r *SSMResolver) Fill(ctx context.Context, targets map[string]*string) error {
	if r == nil {
		return nil
	}

	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		dst := targets[name]
		if dst == nil || *dst != "" {
			continue
		}
		v, err := r.Get(ctx, name)
		switch {
		case errors.Is(err, ErrNotFound):
			r.logger.Info(ctx, "secret not present in SSM", "name", name, "path", r.Path(name))
		case err != nil:
			errs = append(errs, err)
		case v == "":
			r.logger.Warn(ctx, "secret in SSM is empty", "name", name, "path", r.Path(name))
		default:
			*dst = v
			r.logger.Debug(ctx, "secret resolved from SSM", "name", name)
		}
	}
	return xerrors.Join(errs...)
}
