package notifier

import (
	"log/slog"

	"keygate/internal/model"
)

// Notifier receives key lifecycle events so operators can see what the
// dashboard is doing without tailing request logs. Implementations are
// fire-and-forget: delivery failures are logged, never propagated, and
// never fail the request that raised the event.
type Notifier interface {
	KeyCreated(key *model.APIKey)
	KeyDeleted(id uint, name string)
	LimitReached(key *model.APIKey)
	Close() error
}

// LogNotifier emits events to the service log. It is the default when no
// external channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) KeyCreated(key *model.APIKey) {
	n.logger.Info("api key created", "id", key.ID, "name", key.Name, "usage_limit", key.UsageLimit)
}

func (n *LogNotifier) KeyDeleted(id uint, name string) {
	n.logger.Info("api key deleted", "id", id, "name", name)
}

func (n *LogNotifier) LimitReached(key *model.APIKey) {
	n.logger.Warn("api key usage limit reached", "id", key.ID, "name", key.Name, "usage_limit", key.UsageLimit)
}

func (n *LogNotifier) Close() error { return nil }
