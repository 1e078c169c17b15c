// Package notify fans committed vault changes out to in-process subscribers.
package notify

import (
	"sync"
	"time"
)

// Kind names what changed.
type Kind string

// Event kinds.
const (
	NomineeInvited   Kind = "nominee.invited"
	NomineeAccepted  Kind = "nominee.accepted"
	NomineeActivated Kind = "nominee.activated"
	NomineeRevoked   Kind = "nominee.revoked"
	NomineeInactive  Kind = "nominee.inactive"

	TransferRequested Kind = "transfer.requested"
	TransferCompleted Kind = "transfer.completed"
	TransferExpired   Kind = "transfer.expired"
	TransferCancelled Kind = "transfer.cancelled"

	MessageSent Kind = "message.sent"
)

// Event tells a subscriber that a record of a vault changed. It carries ids
// only; subscribers re-read current state.
type Event struct {
	VaultID   string    `json:"vault_id"`
	Kind      Kind      `json:"kind"`
	SubjectID string    `json:"subject_id"`
	At        time.Time `json:"at"`
}

// subscriberBuffer is how many undelivered events a subscriber may fall
// behind before new ones are dropped.
const subscriberBuffer = 16

// Broker is a per-vault publish/subscribe hub. The zero value is not usable;
// call NewBroker.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers for events of one vault. Call the returned cancel
// function to unsubscribe; it closes the channel.
func (b *Broker) Subscribe(vaultID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[vaultID] == nil {
		b.subs[vaultID] = make(map[chan Event]struct{})
	}
	b.subs[vaultID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[vaultID], ch)
			if len(b.subs[vaultID]) == 0 {
				delete(b.subs, vaultID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers events without blocking. A subscriber whose buffer is full
// misses the event.
func (b *Broker) Publish(events ...Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ev := range events {
		for ch := range b.subs[ev.VaultID] {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// Subscribers returns the number of live subscriptions for a vault.
func (b *Broker) Subscribers(vaultID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[vaultID])
}
