package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-ledger/ledger"
	"github.com/warp/rental-ledger/ledger/store"
	"github.com/warp/rental-ledger/ledger/storetest"
)

func TestMemory_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ledger.TxStore {
		return store.NewMemory()
	})
}

func TestMemory_ReturnsCopies(t *testing.T) {
	// GIVEN: a stored building
	ctx := context.Background()
	mem := store.NewMemory()
	id, err := mem.CreateBuilding(ctx, ledger.Building{Name: "Original"})
	require.NoError(t, err)

	// WHEN: the caller mutates what it got back
	list, err := mem.ListBuildings(ctx)
	require.NoError(t, err)
	list[0].Name = "Mutated"

	// THEN: the store is unchanged
	got, err := mem.GetBuilding(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Name)
}

func TestMemory_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_ = mem.WithTx(ctx, func(tx ledger.Store) error {
				_, err := tx.CreateBuilding(ctx, ledger.Building{Name: "B"})
				return err
			})
		}()
	}
	for i := 0; i < 20; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for writers")
		}
	}

	all, err := mem.ListBuildings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 20)
}
