package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishInvokesAllSubscribersInOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.Subscribe(func(ev Event) { order = append(order, "first:"+ev.URI()) })
	bus.Subscribe(func(ev Event) { order = append(order, "second:"+ev.URI()) })

	bus.Publish(NewStop(7))

	assert.Equal(t, []string{"first:on_stop", "second:on_stop"}, order)
}

func TestUnsubscribeStopsFurtherDelivery(t *testing.T) {
	bus := NewBus()

	var calls int
	unsubscribe := bus.Subscribe(func(Event) { calls++ })

	bus.Publish(NewStop(7))
	unsubscribe()
	bus.Publish(NewStop(7))

	assert.Equal(t, 1, calls)
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus()

	var secondCalled bool
	bus.Subscribe(func(Event) { panic("boom") })
	bus.Subscribe(func(Event) { secondCalled = true })

	assert.NotPanics(t, func() { bus.Publish(NewStop(7)) })
	assert.True(t, secondCalled)
}

func TestConnectArgsCarryNilChannelWhenAbsent(t *testing.T) {
	ev := NewConnect(7, nil)
	assert.Equal(t, []any{"7", nil}, ev.Args())

	channel := uint64(42)
	ev = NewConnect(7, &channel)
	assert.Equal(t, []any{"7", uint64(42)}, ev.Args())
}
