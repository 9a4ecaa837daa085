package watcher

import (
	"context"
	"encoding/json"
	"testing"

	"restockd/lib/fetch"
	"restockd/lib/statestore"
	"restockd/lib/statestore/db"
	"restockd/lib/testutil"
	"restockd/services/notify"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type recordingChannel struct {
	titles []string
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Send(ctx context.Context, title, body string) error {
	c.titles = append(c.titles, title)
	return nil
}

func setupStore(t testing.TB) (statestore.Store, func()) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/watcher",
		DbSchema: db.Schema,
	})
	return statestore.NewStore(setup.DB), cleanup
}

func TestRunCheckFullCycle(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	channel := &recordingChannel{}
	fetcher := newScriptedFetcher()
	fetcher.script("u1", page(soldOutPage))

	service := NewService(
		store,
		fetcher,
		[]notify.Channel{channel},
		[]Target{testTarget("u1")},
		testConfig(),
	)

	// first run: sold out, no alert
	summary, err := service.RunCheck(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Contains(t, summary, "OK - no changes")
	require.Empty(t, channel.titles)

	status, err := service.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, StatusOut, status["widget"].Status)
	require.Equal(t, "out_of_stock_keyword", status["widget"].LastReason)

	// the shop restocks
	fetcher.responses["u1"] = []fetch.Result{page(orderPage)}
	summary, err = service.RunCheck(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Contains(t, summary, "widget: OUT -> IN")
	require.Equal(t, []string{"Restock: widget"}, channel.titles)

	status, err = service.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, StatusIn, status["widget"].Status)
	require.NotZero(t, status["widget"].InSinceTs)
}

func TestRunCheckPrunesRemovedTargets(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	fetcher := newScriptedFetcher()
	fetcher.script("a-url", page(soldOutPage))
	fetcher.script("b-url", page(soldOutPage))

	targetA := testTarget("a-url")
	targetA.Name = "a"
	targetB := testTarget("b-url")
	targetB.Name = "b"

	service := NewService(store, fetcher, nil, []Target{targetA, targetB}, testConfig())
	_, err := service.RunCheck(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// target b is edited out of the config
	service = NewService(store, fetcher, nil, []Target{targetA}, testConfig())
	_, err = service.RunCheck(ctx)
	if err != nil {
		t.Fatal(err)
	}

	data, err := store.Load(ctx, SnapshotKey)
	if err != nil {
		t.Fatal(err)
	}
	states := map[string]TargetState{}
	err = json.Unmarshal(data, &states)
	if err != nil {
		t.Fatal(err)
	}
	require.Contains(t, states, "a")
	require.NotContains(t, states, "b")
}

func TestGetStatusSynthesizesDefaults(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	service := NewService(store, newScriptedFetcher(), nil, []Target{testTarget("u1")}, testConfig())

	status, err := service.GetStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, StatusOut, status["widget"].Status)
	require.Zero(t, status["widget"].Ts)
}

func TestGetStatusFiltersToConfiguredTargets(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	fetcher := newScriptedFetcher()
	fetcher.script("u1", page(soldOutPage))

	service := NewService(store, fetcher, nil, []Target{testTarget("u1")}, testConfig())
	_, err := service.RunCheck(ctx)
	if err != nil {
		t.Fatal(err)
	}

	other := testTarget("other-url")
	other.Name = "other"
	service = NewService(store, fetcher, nil, []Target{other}, testConfig())

	status, err := service.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.NotContains(t, status, "widget")
	require.Equal(t, StatusOut, status["other"].Status)
}

func TestRunCheckErrorPath(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	fetcher := newScriptedFetcher() // no scripts: every fetch fails

	service := NewService(store, fetcher, nil, []Target{testTarget("u1")}, testConfig())
	summary, err := service.RunCheck(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Contains(t, summary, "OK - no changes")

	status, err := service.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 1, status["widget"].ErrStreak)
	require.Equal(t, StatusOut, status["widget"].Status)
}
