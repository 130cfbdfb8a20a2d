package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fluxkit/resumer/pkg/fsview"
	"github.com/fluxkit/resumer/pkg/fsview/local"
	s3view "github.com/fluxkit/resumer/pkg/fsview/s3"
)

// buildView maps a base checkpoint location onto a view and the base path
// in that view's coordinates. "s3://bucket/prefix" selects the S3 view;
// "file://" URIs and plain paths select the local view.
func buildView(ctx context.Context, base string) (fsview.View, string, error) {
	switch {
	case strings.HasPrefix(base, "s3://"):
		u, err := url.Parse(base)
		if err != nil {
			return nil, "", fmt.Errorf("parse base uri %s: %w", base, err)
		}
		if u.Host == "" {
			return nil, "", fmt.Errorf("base uri %s has no bucket", base)
		}
		v, err := s3view.New(ctx, s3view.Config{Bucket: u.Host})
		if err != nil {
			return nil, "", err
		}
		return v, strings.Trim(u.Path, "/"), nil

	case strings.HasPrefix(base, "file://"):
		u, err := url.Parse(base)
		if err != nil {
			return nil, "", fmt.Errorf("parse base uri %s: %w", base, err)
		}
		return local.New(), u.Path, nil

	default:
		return local.New(), base, nil
	}
}
