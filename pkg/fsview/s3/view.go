package s3

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/fluxkit/resumer/pkg/fsview"
)

// View lists an S3 bucket as a directory tree using delimiter listing.
//
// Paths are key prefixes without a trailing slash; "directories" are common
// prefixes reported by ListObjectsV2 with Delimiter="/". An empty path lists
// the bucket root.
type View struct {
	client  *s3.Client
	bucket  string
	maxKeys int
}

var _ fsview.View = (*View)(nil)

// New creates an S3 view with the given configuration.
func New(ctx context.Context, cfg Config) (*View, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &fsview.ViewError{Op: "New", View: fsview.ViewS3, Err: err}
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	return &View{
		client:  s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:  cfg.Bucket,
		maxKeys: maxKeys,
	}, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	return config.LoadDefaultConfig(ctx, opts...)
}

func (v *View) Close() error { return nil }

// Join builds a key prefix from path elements, skipping empty ones.
func (v *View) Join(elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		e = strings.Trim(e, "/")
		if e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "/")
}

// List returns the immediate children under the given prefix.
//
// Common prefixes become directory entries; object keys directly under the
// prefix become file entries. A prefix with no keys at all is reported as
// fsview.ErrNotFound, matching the local view's behavior for a directory
// that does not exist yet.
func (v *View) List(ctx context.Context, path string) ([]fsview.Entry, error) {
	prefix := strings.Trim(path, "/")
	if prefix != "" {
		prefix += "/"
	}

	var out []fsview.Entry
	var continuation *string
	seen := false

	for {
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(v.bucket),
			Delimiter:         aws.String("/"),
			MaxKeys:           aws.Int32(int32(v.maxKeys)),
			ContinuationToken: continuation,
		}
		if prefix != "" {
			input.Prefix = aws.String(prefix)
		}

		output, err := v.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, v.wrapError("List", path, err)
		}

		for _, cp := range output.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			name := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, prefix), "/")
			if name == "" {
				continue
			}
			out = append(out, fsview.Entry{Name: name, Dir: true})
			seen = true
		}
		for _, obj := range output.Contents {
			if obj.Key == nil {
				continue
			}
			name := strings.TrimPrefix(*obj.Key, prefix)
			if name == "" {
				// The prefix placeholder object itself.
				seen = true
				continue
			}
			out = append(out, fsview.Entry{Name: name, Dir: false})
			seen = true
		}

		if output.IsTruncated == nil || !*output.IsTruncated {
			break
		}
		continuation = output.NextContinuationToken
	}

	if !seen {
		return nil, &fsview.ViewError{Op: "List", View: fsview.ViewS3, Path: path, Err: fsview.ErrNotFound}
	}
	return out, nil
}

// wrapError maps S3 API errors onto view sentinel errors.
func (v *View) wrapError(op, path string, err error) error {
	wrapped := err

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket", "NoSuchKey", "NotFound":
			wrapped = fsview.ErrNotFound
		case "AccessDenied":
			wrapped = fsview.ErrAccessDenied
		}
	}

	return &fsview.ViewError{Op: op, View: fsview.ViewS3, Path: path, Err: wrapped}
}
