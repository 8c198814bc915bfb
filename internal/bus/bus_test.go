package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woodshedapp/woodshed/models"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	b := New()

	var order []int
	b.Subscribe(func(Event) { order = append(order, 1) })
	b.Subscribe(func(Event) { order = append(order, 2) })
	b.Subscribe(func(Event) { order = append(order, 3) })

	b.Publish(LoggedOut{Reason: "test"})

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBus_NoReplayForLateSubscribers(t *testing.T) {
	b := New()
	b.Publish(TokenUpdated{Pair: models.TokenPair{AccessToken: "a"}})

	seen := 0
	b.Subscribe(func(Event) { seen++ })

	assert.Zero(t, seen, "late subscriber must not see past events")
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()

	seen := 0
	unsub := b.Subscribe(func(Event) { seen++ })

	b.Publish(LoggedOut{})
	unsub()
	b.Publish(LoggedOut{})
	unsub() // second call is a no-op

	assert.Equal(t, 1, seen)
}

func TestBus_SubscribeDuringDelivery(t *testing.T) {
	b := New()

	var events []string
	b.Subscribe(func(e Event) {
		events = append(events, e.EventName())
		// a listener registering another listener mid-delivery must not
		// corrupt the current publish
		b.Subscribe(func(e Event) { events = append(events, "nested:"+e.EventName()) })
	})

	b.Publish(LoggedOut{})
	require.Equal(t, []string{"logged_out"}, events)

	b.Publish(TokenUpdated{})
	assert.Contains(t, events, "nested:token_updated")
}

func TestEvents_CarryPayload(t *testing.T) {
	b := New()

	var got models.TokenPair
	b.Subscribe(func(e Event) {
		if upd, ok := e.(TokenUpdated); ok {
			got = upd.Pair
		}
	})

	pair := models.TokenPair{AccessToken: "acc", RefreshToken: "ref"}
	b.Publish(TokenUpdated{Pair: pair})

	assert.Equal(t, pair, got)
}
