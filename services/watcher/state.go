package watcher

import (
	"context"
	"fmt"

	"restockd/services/notify"
)

// Notifier abstracts the alert fan-out so the state machine can be
// exercised without real channels. HasChannels gates the restock
// retry rule: with no channels configured there is nothing to retry.
type Notifier interface {
	HasChannels() bool
	Notify(ctx context.Context, title, body string) notify.Result
}

// ApplyOutcome advances one target's state by one probe outcome.
// It returns the new state and a change event string ("<name>: OUT ->
// IN" style), empty when the confirmed status did not change.
//
// Alerts are a side effect here: a restock alert on the confirmed
// OUT -> IN transition (retried on later runs until one channel takes
// it), and a rate-limited error alert once the error streak crosses
// its threshold. The cooldown gates only the timing of repeated error
// alerts; ErrStreak itself keeps climbing until a non-error outcome
// resets it.
func ApplyOutcome(
	ctx context.Context,
	name string,
	prior TargetState,
	outcome Outcome,
	now int64,
	cfg Config,
	notifier Notifier,
) (TargetState, string) {
	st := prior
	event := ""

	switch outcome.Kind {
	case OutcomeError:
		// an inconclusive probe breaks confirmation accumulation
		st.InStreak = 0
		st.ErrStreak++
		cooldownOver := now-st.LastErrNotifyTs >= cfg.ErrorNotifyCooldownSec
		if st.ErrStreak >= cfg.ErrorStreakNotifyThreshold && cooldownOver {
			result := notifier.Notify(
				ctx,
				fmt.Sprintf("Probe errors: %s", name),
				fmt.Sprintf(
					"%d consecutive probe errors\nlast url: %s\nlast reason: %s",
					st.ErrStreak, outcome.Url, outcome.Reason,
				),
			)
			if result.Ok() {
				st.LastErrNotifyTs = now
			}
		}

	case OutcomeOut:
		st.ErrStreak = 0
		st.InStreak = 0
		st.InSinceTs = 0
		if prior.Status == StatusIn {
			event = fmt.Sprintf("%s: IN -> OUT", name)
		}
		st.Status = StatusOut

	case OutcomeIn:
		st.ErrStreak = 0

		if prior.Status == StatusOut {
			st.InStreak++
			if st.InStreak >= cfg.InConfirmationsRequired {
				st.Status = StatusIn
				st.InSinceTs = now
				event = fmt.Sprintf("%s: OUT -> IN", name)

				title, body := restockAlert(name, outcome.Url, st.InStreak)
				result := notifier.Notify(ctx, title, body)
				st.LastInNotifyAttemptTs = now
				if result.Ok() {
					st.LastInNotifyOkTs = now
				}
			}
			// below the threshold the streak accumulates silently
		} else {
			// never decrease the streak while confirmed IN
			if st.InStreak < cfg.InConfirmationsRequired {
				st.InStreak = cfg.InConfirmationsRequired
			}
			// the restock alert at the transition may have failed on
			// every channel, keep resending until one takes it
			if notifier.HasChannels() && st.LastInNotifyOkTs < st.InSinceTs {
				title, body := restockAlert(name, outcome.Url, st.InStreak)
				result := notifier.Notify(ctx, title, body)
				st.LastInNotifyAttemptTs = now
				if result.Ok() {
					st.LastInNotifyOkTs = now
				}
			}
		}
	}

	st.LastUsedUrl = outcome.Url
	st.LastReason = outcome.Reason
	st.Ts = now
	return st, event
}

func restockAlert(name, url string, confirmations int) (title, body string) {
	title = fmt.Sprintf("Restock: %s", name)
	body = fmt.Sprintf(
		"%s looks purchasable again\nurl: %s\nconfirmations: %d",
		name, url, confirmations,
	)
	return title, body
}
