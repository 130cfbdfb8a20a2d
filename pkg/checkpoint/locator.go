package checkpoint

import (
	"context"

	"go.uber.org/zap"

	"github.com/fluxkit/resumer/pkg/fsview"
)

// Locator scans a resolved checkpoint root for the most recent complete
// checkpoint.
//
// A scan is a point-in-time snapshot, not a watch; callers that need "wait
// until a checkpoint appears" poll FindLatestComplete.
type Locator struct {
	view     fsview.View
	detector *Detector
	logger   *zap.Logger
}

// NewLocator creates a locator over the given view. A nil detector uses the
// default entry pattern and marker; a nil logger disables logging.
func NewLocator(v fsview.View, d *Detector, logger *zap.Logger) *Locator {
	if d == nil {
		d = &Detector{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{view: v, detector: d, logger: logger}
}

// Detector exposes the locator's completeness detector.
func (l *Locator) Detector() *Detector {
	return l.detector
}

// FindLatestComplete returns the complete checkpoint with the greatest
// sequence number under root, or nil if root does not exist or holds no
// complete checkpoint. Sequence numbers are unique per root by construction
// of the snapshot backend, so ties cannot occur.
//
// Errors from listing individual candidates are swallowed (the candidate is
// skipped); an error listing root itself, other than absence, is returned
// so callers can retry.
func (l *Locator) FindLatestComplete(ctx context.Context, root string) (*Handle, error) {
	entries, err := l.view.List(ctx, root)
	if err != nil {
		if fsview.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var best *Handle
	for _, entry := range entries {
		if !entry.Dir {
			continue
		}
		seq, ok := l.detector.MatchEntry(entry.Name)
		if !ok {
			continue
		}
		if best != nil && seq <= best.Sequence {
			continue
		}
		dir := l.view.Join(root, entry.Name)
		if !l.detector.IsComplete(ctx, l.view, dir) {
			l.logger.Debug("skipping incomplete checkpoint",
				zap.String("dir", dir),
				zap.Int64("sequence", seq))
			continue
		}
		best = &Handle{Location: dir, Sequence: seq, Complete: true}
	}

	if best != nil {
		l.logger.Debug("latest complete checkpoint",
			zap.String("location", best.Location),
			zap.Int64("sequence", best.Sequence))
	}
	return best, nil
}
