package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()

	var got []Event
	unsubscribe := bus.Subscribe(func(e Event) { got = append(got, e) })

	bus.Publish(Event{Type: AlertCreated, CarID: "car-1", EntityID: "a1"})
	require.Len(t, got, 1)
	assert.Equal(t, AlertCreated, got[0].Type)
	assert.False(t, got[0].At.IsZero())

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bus.Publish(Event{Type: PlanScheduled, At: at})
	require.Len(t, got, 2)
	assert.Equal(t, at, got[1].At)

	unsubscribe()
	bus.Publish(Event{Type: AlertArchived})
	assert.Len(t, got, 2)
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()
	var a, b int
	bus.Subscribe(func(Event) { a++ })
	unsubB := bus.Subscribe(func(Event) { b++ })

	bus.Publish(Event{Type: StorageReset})
	unsubB()
	unsubB()
	bus.Publish(Event{Type: StorageReset})

	assert.Equal(t, 2, a)
	assert.Equal(t, 1, b)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	count := 0
	bus.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Event{Type: AlertLinked})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, count)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NotPanics(t, func() { p.Publish(Event{Type: AlertCreated}) })
}
