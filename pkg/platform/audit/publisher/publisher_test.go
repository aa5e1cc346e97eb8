package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "sharereg/pkg/domain"
	audit "sharereg/pkg/platform/audit"
	"sharereg/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	tenantID := id.TenantID(uuid.New())
	err := pub.Emit(context.Background(), audit.Event{
		TenantID:   tenantID,
		Action:     audit.ActionCreate,
		EntityType: audit.EntityShareholder,
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), tenantID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionCreate, events[0].Action)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	tenantID := id.TenantID(uuid.New())
	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			TenantID: tenantID,
			Action:   audit.ActionPost,
		})
		require.NoError(t, err)
	}

	pub.Close()

	events, err := store.ListByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DoesNotPanic(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))

	tenantID := id.TenantID(uuid.New())
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{TenantID: tenantID, Action: audit.ActionCreate})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
	pub.Close()

	events, err := store.ListByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithClock(func() time.Time { return fixed }))
	defer pub.Close()

	tenantID := id.TenantID(uuid.New())
	require.NoError(t, pub.Emit(context.Background(), audit.Event{TenantID: tenantID, Action: audit.ActionCreate}))

	events, err := pub.List(context.Background(), tenantID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	tenantID := id.TenantID(uuid.New())
	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{TenantID: tenantID, Timestamp: custom}))

	events, err := pub.List(context.Background(), tenantID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
}

func TestPublisher_ListNewestFirstAndTenantScoped(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	tenantA := id.TenantID(uuid.New())
	tenantB := id.TenantID(uuid.New())
	for _, action := range []audit.Action{audit.ActionCreate, audit.ActionUpdate, audit.ActionPost} {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{TenantID: tenantA, Action: action}))
	}
	require.NoError(t, pub.Emit(context.Background(), audit.Event{TenantID: tenantB, Action: audit.ActionDelete}))

	events, err := pub.List(context.Background(), tenantA, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionPost, events[0].Action)
	assert.Equal(t, audit.ActionUpdate, events[1].Action)

	events, err = pub.List(context.Background(), tenantB, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionDelete, events[0].Action)
}

type failingSink struct {
	calls int
}

func (f *failingSink) Append(context.Context, audit.Event) error {
	f.calls++
	return errors.New("broker unavailable")
}

func TestPublisher_SinkFailureDoesNotFailEmit(t *testing.T) {
	store := memory.NewInMemoryStore()
	sink := &failingSink{}
	pub := NewPublisher(store, WithSink(sink))
	defer pub.Close()

	tenantID := id.TenantID(uuid.New())
	require.NoError(t, pub.Emit(context.Background(), audit.Event{TenantID: tenantID, Action: audit.ActionPost}))

	assert.Equal(t, 1, sink.calls)
	events, err := store.ListByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
