package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Kinds of notification.
const (
	KindAccountLocked      = "account_locked"
	KindSuspiciousLocation = "suspicious_login_location"
	KindTokenReuse         = "token_reuse_detected"
)

// Notification is one message addressed to a user.
type Notification struct {
	Kind     string
	UserID   string
	Subject  string
	Body     string
	Metadata map[string]string
	At       time.Time
}

// Notifier delivers a notification through some channel (email, SMS, push).
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// LogNotifier writes notifications to a zap logger. It is the default when
// no delivery channel is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		return nil
	}
	logger.Info("notification",
		zap.String("kind", n.Kind),
		zap.String("user_id", n.UserID),
		zap.String("subject", n.Subject),
		zap.Time("at", n.At),
	)
	return nil
}
