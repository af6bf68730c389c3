// Package notify delivers run events: newly confirmed common follows and the
// one-time first-run notice.
package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/follow-scope/fscope/internal/tracking"
)

const (
	logMessageNewCommonFollow = "new common follow confirmed"
	logMessageFirstRun        = "no previous store found, first run"
	logFieldAccountID         = "accountID"
	logFieldAccountName       = "accountName"
	logFieldFollowedBy        = "followedBy"
	logFieldFollowersCount    = "followersCount"
	followedByJoinSeparator   = ", "
)

// Sink receives classification events for delivery. Delivery transport is the
// sink implementation's concern.
type Sink interface {
	NotifyNewCommonFollow(ctx context.Context, row tracking.Row) error
	NotifyFirstRun(ctx context.Context) error
}

// NopSink discards every event.
type NopSink struct{}

// NotifyNewCommonFollow discards the event.
func (NopSink) NotifyNewCommonFollow(context.Context, tracking.Row) error { return nil }

// NotifyFirstRun discards the event.
func (NopSink) NotifyFirstRun(context.Context) error { return nil }

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a LogSink. A nil logger falls back to a no-op logger.
func NewLogSink(logger *zap.Logger) LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return LogSink{logger: logger}
}

// NotifyNewCommonFollow logs the confirmed account with its follower details.
func (sink LogSink) NotifyNewCommonFollow(_ context.Context, row tracking.Row) error {
	sink.logger.Info(logMessageNewCommonFollow,
		zap.String(logFieldAccountID, row.ID),
		zap.String(logFieldAccountName, row.Name),
		zap.String(logFieldFollowedBy, strings.Join(row.FollowedBy, followedByJoinSeparator)),
		zap.Int(logFieldFollowersCount, row.FollowersCount),
	)
	return nil
}

// NotifyFirstRun logs the first-run notice.
func (sink LogSink) NotifyFirstRun(context.Context) error {
	sink.logger.Info(logMessageFirstRun)
	return nil
}
