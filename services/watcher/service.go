package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"restockd/lib/fetch"
	"restockd/lib/statestore"
	"restockd/lib/timezone"
	"restockd/services/notify"

	"go.opentelemetry.io/otel/codes"
)

// SnapshotKey is where the watcher keeps its state map in the store.
const SnapshotKey = "watcher"

type Service struct {
	store    statestore.Store
	fetcher  fetch.Fetcher
	channels []notify.Channel
	targets  []Target
	cfg      Config

	// runMu makes RunCheck single-flight: a trigger arriving while a
	// run is still in progress returns immediately instead of racing
	// the snapshot write.
	runMu sync.Mutex
}

func NewService(
	store statestore.Store,
	fetcher fetch.Fetcher,
	channels []notify.Channel,
	targets []Target,
	cfg Config,
) *Service {
	return &Service{
		store:    store,
		fetcher:  fetcher,
		channels: channels,
		targets:  targets,
		cfg:      cfg,
	}
}

type channelNotifier struct {
	channels []notify.Channel
}

func (n channelNotifier) HasChannels() bool {
	return len(n.channels) > 0
}

func (n channelNotifier) Notify(ctx context.Context, title, body string) notify.Result {
	return notify.Fanout(ctx, n.channels, title, body)
}

func (s *Service) loadStates(ctx context.Context) (map[string]TargetState, error) {
	data, err := s.store.Load(ctx, SnapshotKey)
	if err != nil {
		return nil, fmt.Errorf("load state snapshot: %w", err)
	}
	states := map[string]TargetState{}
	if len(data) > 0 {
		err = json.Unmarshal(data, &states)
		if err != nil {
			return nil, fmt.Errorf("unmarshal state snapshot: %w", err)
		}
	}
	return states, nil
}

func (s *Service) saveStates(ctx context.Context, states map[string]TargetState) error {
	data, err := json.Marshal(states)
	if err != nil {
		return fmt.Errorf("marshal state snapshot: %w", err)
	}
	err = s.store.Save(ctx, SnapshotKey, data)
	if err != nil {
		return fmt.Errorf("save state snapshot: %w", err)
	}
	return nil
}

// RunCheck performs one full check cycle: probe every target in list
// order, apply the state machine, prune state for targets no longer
// configured and persist the snapshot in a single write. A failing
// target never aborts the run; only a failing state load or save does.
func (s *Service) RunCheck(ctx context.Context) (string, error) {
	ts := timezone.Now().Format(time.RFC3339)
	if !s.runMu.TryLock() {
		return fmt.Sprintf("[%s] check already in progress", ts), nil
	}
	defer s.runMu.Unlock()

	ctx, span := tracer.Start(ctx, "RunCheck")
	defer span.End()

	states, err := s.loadStates(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load state snapshot")
		return "", err
	}

	notifier := channelNotifier{channels: s.channels}
	var events []string

	for _, target := range s.targets {
		prior, ok := states[target.Name]
		if !ok {
			prior = defaultState()
		}

		outcome := Probe(ctx, target, s.fetcher, s.cfg)
		next, event := ApplyOutcome(
			ctx,
			target.Name,
			prior,
			outcome,
			timezone.Now().Unix(),
			s.cfg,
			notifier,
		)
		states[target.Name] = next

		slog.DebugContext(
			ctx, "target checked",
			"target", target.Name,
			"outcome", outcome.Kind,
			"reason", outcome.Reason,
			"status", next.Status,
		)
		if event != "" {
			slog.InfoContext(ctx, "stock status changed", "event", event)
			events = append(events, event)
		}
	}

	// drop state for targets edited out of the config
	active := map[string]bool{}
	for _, target := range s.targets {
		active[target.Name] = true
	}
	for name := range states {
		if !active[name] {
			delete(states, name)
		}
	}

	err = s.saveStates(ctx, states)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save state snapshot")
		return "", err
	}

	if len(events) == 0 {
		return fmt.Sprintf("[%s] OK - no changes", ts), nil
	}
	return fmt.Sprintf("[%s] %s", ts, strings.Join(events, "\n")), nil
}

// GetStatus returns a read-only view of per-target state, filtered to
// the currently configured targets. Targets never probed come back
// with zero-valued defaults.
func (s *Service) GetStatus(ctx context.Context) (map[string]TargetState, error) {
	ctx, span := tracer.Start(ctx, "GetStatus")
	defer span.End()

	states, err := s.loadStates(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load state snapshot")
		return nil, err
	}

	out := map[string]TargetState{}
	for _, target := range s.targets {
		st, ok := states[target.Name]
		if !ok {
			st = defaultState()
		}
		out[target.Name] = st
	}
	return out, nil
}
