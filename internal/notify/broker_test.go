package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerDeliversPerVault(t *testing.T) {
	b := NewBroker()

	a, cancelA := b.Subscribe("vault-a")
	defer cancelA()
	other, cancelOther := b.Subscribe("vault-b")
	defer cancelOther()

	b.Publish(Event{VaultID: "vault-a", Kind: NomineeAccepted, SubjectID: "n1", At: time.Now()})

	select {
	case ev := <-a:
		assert.Equal(t, NomineeAccepted, ev.Kind)
		assert.Equal(t, "n1", ev.SubjectID)
	case <-time.After(time.Second):
		t.Fatal("expected event for vault-a")
	}

	select {
	case ev := <-other:
		t.Fatalf("unexpected event for vault-b: %+v", ev)
	default:
	}
}

func TestBrokerCancelClosesChannel(t *testing.T) {
	b := NewBroker()

	ch, cancel := b.Subscribe("v")
	require.Equal(t, 1, b.Subscribers("v"))

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
	assert.Equal(t, 0, b.Subscribers("v"))

	// Publishing with no subscribers is a no-op.
	b.Publish(Event{VaultID: "v", Kind: MessageSent})
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker()

	ch, cancel := b.Subscribe("v")
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(Event{VaultID: "v", Kind: MessageSent})
	}
	assert.Len(t, ch, subscriberBuffer)
}
