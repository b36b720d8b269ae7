package intake

import "go.uber.org/zap"

// Notifier shows transient messages to front-desk staff.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to a zap logger. It is the default when
// the host supplies no notifier.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) logger() *zap.Logger {
	if n.Logger == nil {
		return zap.NewNop()
	}
	return n.Logger
}

func (n LogNotifier) Success(msg string) {
	n.logger().Info(msg, zap.String("notification", "success"))
}

func (n LogNotifier) Error(msg string) {
	n.logger().Warn(msg, zap.String("notification", "error"))
}
