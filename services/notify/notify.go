// Package notify delivers operator alerts over a closed set of channel
// implementations (telegram, signed webhook, smtp email). Channels are
// injected into the watcher, never discovered at runtime.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"restockd/lib/telemetry"

	"go.opentelemetry.io/otel/attribute"
)

var tracer = telemetry.Tracer("restockd.services.notify")

// Channel sends a single alert message. Implementations own their wire
// format and authentication; a non-2xx response or transport failure
// must come back as an error, never a panic or a hang.
type Channel interface {
	Name() string
	Send(ctx context.Context, title, body string) error
}

// Result aggregates one fan-out pass over every configured channel.
type Result struct {
	Attempted int      `json:"attempted"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Ok reports whether at least one channel accepted the message.
func (r Result) Ok() bool {
	return r.Sent > 0
}

// Fanout sends to every channel concurrently. One channel failing or
// stalling never prevents delivery attempts on the others; the joined
// result carries per-channel errors for diagnostics only. An empty
// channel set returns a zero Result without attempting anything.
func Fanout(ctx context.Context, channels []Channel, title, body string) Result {
	if len(channels) == 0 {
		return Result{}
	}

	ctx, span := tracer.Start(ctx, "Fanout")
	defer span.End()
	span.SetAttributes(attribute.Int("channels", len(channels)))

	type outcome struct {
		name string
		err  error
	}
	outcomes := make([]outcome, len(channels))

	wg := sync.WaitGroup{}
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			outcomes[i] = outcome{name: ch.Name(), err: ch.Send(ctx, title, body)}
		}(i, ch)
	}
	wg.Wait()

	result := Result{Attempted: len(channels)}
	for _, o := range outcomes {
		if o.err == nil {
			result.Sent++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", o.name, o.err))
		slog.WarnContext(ctx, "channel send failed", "channel", o.name, "err", o.err)
	}
	return result
}
