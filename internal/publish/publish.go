// Package publish copies a finished blueprint archive to where its users pick
// it up: a local directory, an OCI registry, or an S3-compatible bucket.
package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
	"github.com/felixgeelhaar/blueprint/internal/log"
	"github.com/felixgeelhaar/blueprint/internal/metrics"
)

// Publisher stores an archive and returns where it can be found.
type Publisher interface {
	Publish(ctx context.Context, filename string, archive []byte) (location string, err error)
	// Target names the destination kind ("file", "oci", "s3") for logs and metrics.
	Target() string
}

// Result is one publisher's outcome.
type Result struct {
	Target   string
	Location string
	Err      error
}

// All publishes to every publisher in order and keeps going after a failure.
// The returned error joins every failure.
func All(ctx context.Context, publishers []Publisher, filename string, archive []byte, logger *log.Logger, m *metrics.Metrics) ([]Result, error) {
	if logger == nil {
		logger = log.DefaultLogger()
	}

	results := make([]Result, 0, len(publishers))
	var failed []string
	for _, p := range publishers {
		start := time.Now()
		location, err := p.Publish(ctx, filename, archive)
		elapsed := time.Since(start)

		if m != nil {
			m.Publishes.WithLabelValues(p.Target(), fmt.Sprint(err == nil)).Inc()
			m.PublishDuration.WithLabelValues(p.Target()).Observe(elapsed.Seconds())
		}
		if err != nil {
			logger.WithError(err).Error("publish failed", "target", p.Target(), "file", filename)
			failed = append(failed, p.Target())
		} else {
			logger.Info("archive published", "target", p.Target(), "location", location, "duration", elapsed)
		}
		results = append(results, Result{Target: p.Target(), Location: location, Err: err})
	}

	if len(failed) > 0 {
		return results, berrors.New(berrors.ErrCodePublishFailed,
			fmt.Sprintf("publishing failed for: %s", strings.Join(failed, ", ")))
	}
	return results, nil
}

func publishError(target, format string, cause error, args ...any) *berrors.Error {
	return berrors.Wrap(berrors.ErrCodePublishFailed, fmt.Sprintf("%s: %s", target, fmt.Sprintf(format, args...)), cause)
}
