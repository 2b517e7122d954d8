package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/web3-frozen/unlock-emissions/internal/notify"
)

const failuresHeader = "storeEmissions errors: \n"

// Reporter sends run failures to the operator channel. Delivery is best
// effort: send errors are logged and dropped.
type Reporter struct {
	notifier notify.Notifier
	logger   *slog.Logger
}

func NewReporter(n notify.Notifier, logger *slog.Logger) *Reporter {
	if n == nil {
		n = notify.NewLog(logger)
	}
	return &Reporter{notifier: n, logger: logger}
}

// Failures sends one message listing every failed adapter. Nothing is sent
// when names is empty.
func (r *Reporter) Failures(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}
	var sb strings.Builder
	sb.WriteString(failuresHeader)
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteString(", ")
	}
	r.send(ctx, sb.String())
}

// Fatal reports an error that aborted a whole run.
func (r *Reporter) Fatal(ctx context.Context, err error) {
	r.send(ctx, err.Error())
}

func (r *Reporter) send(ctx context.Context, msg string) {
	if err := r.notifier.Send(ctx, msg); err != nil {
		r.logger.Error("send notification failed", "error", err, "message", msg)
	}
}
