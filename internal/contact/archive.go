package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/addynoven/portfolio-web/internal/xerrors"
)

// Archiver keeps a copy of delivered submissions.
type Archiver interface {
	Archive(ctx context.Context, s Submission) error
}

// PutObjectAPI is the subset of *s3.Client used by S3Archiver.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes each submission to
// s3://{bucket}/{prefix}/{yyyy}/{mm}/{dd}/{id}.json.
type S3Archiver struct {
	api    PutObjectAPI
	bucket string
	prefix string
}

// NewS3Archiver returns nil when bucket is empty.
func NewS3Archiver(api PutObjectAPI, bucket, prefix string) *S3Archiver {
	if bucket == "" || api == nil {
		return nil
	}
	return &S3Archiver{api: api, bucket: bucket, prefix: prefix}
}

func (a *S3Archiver) key(s Submission) string {
	return path.Join(a.prefix, s.ReceivedAt.UTC().Format("2006/01/02"), s.ID+".json")
}

func (a *S3Archiver) Archive(ctx context.Context, s Submission) error {
	b, err := json.Marshal(s)
	if err != nil {
		return xerrors.Wrap(err, "encode submission")
	}
	key := a.key(s)
	_, err = a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(b),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return xerrors.Wrapf(err, "put s3://%s/%s", a.bucket, key)
	}
	return nil
}
