package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events"
	memstore "github.com/dr-roshyara/public-digit-sub008/pkg/platform/events/store/memory"
)

func TestSyncEmitDeliversImmediately(t *testing.T) {
	store := memstore.New()
	pub := New(store)

	err := pub.Emit(context.Background(), events.Event{Kind: events.KindCredentialIssued})
	require.NoError(t, err)

	recorded := store.Events()
	require.Len(t, recorded, 1)
	assert.Equal(t, events.KindCredentialIssued, recorded[0].Kind)
	assert.False(t, recorded[0].Timestamp.IsZero(), "timestamp should be stamped on emit")
}

func TestAsyncEmitDrainsOnClose(t *testing.T) {
	store := memstore.New()
	pub := New(store, WithAsyncBuffer(16))

	for i := 0; i < 10; i++ {
		require.NoError(t, pub.Emit(context.Background(), events.Event{Kind: events.KindCredentialActivated}))
	}
	pub.Close()

	assert.Len(t, store.Events(), 10)
}

func TestAsyncEmitDropsWhenBufferFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	pub := New(store, WithAsyncBuffer(1))
	defer func() {
		close(store.release)
		pub.Close()
	}()

	// Fill the worker and the single buffer slot, then the next emit must
	// fail rather than block the caller.
	deadline := time.After(time.Second)
	var dropped bool
	for i := 0; i < 8; i++ {
		if err := pub.Emit(context.Background(), events.Event{Kind: events.KindCredentialRevoked}); err != nil {
			dropped = true
			break
		}
		select {
		case <-deadline:
			t.Fatal("emit loop did not observe a full buffer")
		default:
		}
	}
	assert.True(t, dropped, "expected an emit to be rejected once the buffer filled")
}

// blockingStore stalls Append until released, simulating a slow sink.
type blockingStore struct {
	release chan struct{}
}

func (s *blockingStore) Append(context.Context, events.Event) error {
	<-s.release
	return nil
}
