package statestore

import (
	"context"
	"testing"

	"restockd/lib/statestore/db"
	"restockd/lib/testutil"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestStore(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "lib/statestore",
		DbSchema: db.Schema,
	})
	defer cleanup()
	store := NewStore(setup.DB)

	ctx := context.Background()

	{
		data, err := store.Load(ctx, "missing")
		if err != nil {
			t.Fatal(err)
		}
		require.Nil(t, data)
	}
	{
		err := store.Save(ctx, "watcher", []byte(`{"a":1}`))
		if err != nil {
			t.Fatal(err)
		}
		data, err := store.Load(ctx, "watcher")
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, []byte(`{"a":1}`), data)
	}
	{
		// whole-snapshot overwrite, not a merge
		err := store.Save(ctx, "watcher", []byte(`{"b":2}`))
		if err != nil {
			t.Fatal(err)
		}
		data, err := store.Load(ctx, "watcher")
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, []byte(`{"b":2}`), data)
	}
}
