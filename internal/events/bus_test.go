// ABOUTME: Tests for the typed event bus
// ABOUTME: Covers typed delivery, ordering, wildcard subscribers, and unsubscribe

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribeDeliversOnlyMatchingKind(t *testing.T) {
	bus := NewBus()
	var began []string
	Subscribe(bus, func(e RefreshBegan) { began = append(began, e.AccountID) })

	bus.Publish(RefreshBegan{AccountID: "a"})
	bus.Publish(RefreshFinished{AccountID: "a"})
	bus.Publish(RefreshBegan{AccountID: "b"})

	assert.Equal(t, []string{"a", "b"}, began)
}

func TestPublishOrderAndWildcard(t *testing.T) {
	bus := NewBus()
	var order []string
	Subscribe(bus, func(StructureChanged) { order = append(order, "first") })
	bus.SubscribeAll(func(e Event) { order = append(order, "all:"+string(e.Kind())) })
	Subscribe(bus, func(StructureChanged) { order = append(order, "third") })

	bus.Publish(StructureChanged{AccountID: "a"})

	assert.Equal(t, []string{"first", "all:structure-changed", "third"}, order)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	cancel := Subscribe(bus, func(AccountAdded) { calls++ })

	bus.Publish(AccountAdded{AccountID: "a"})
	cancel()
	cancel()
	bus.Publish(AccountAdded{AccountID: "b"})

	assert.Equal(t, 1, calls)
}

func TestSubscribeDuringPublish(t *testing.T) {
	bus := NewBus()
	late := 0
	Subscribe(bus, func(AccountDeleted) {
		Subscribe(bus, func(AccountDeleted) { late++ })
	})

	bus.Publish(AccountDeleted{AccountID: "a"})
	assert.Equal(t, 0, late)
	bus.Publish(AccountDeleted{AccountID: "a"})
	assert.Equal(t, 1, late)
}
