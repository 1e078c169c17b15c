package access

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
	"github.com/erazemk/zaupnik/internal/notify"
	"github.com/erazemk/zaupnik/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(events ...notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Kind
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	svc    *Service
	db     *db.DB
	clock  *fakeClock
	events *recorder
	alice  *model.User
	bob    *model.User
	carol  *model.User
	vault  *model.Vault
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithDB(t, db.NewTestDB(t))
}

func newFixtureWithDB(t *testing.T, database *db.DB) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{db: database, clock: newFakeClock(), events: &recorder{}}
	f.svc = New(database, Config{RetryDelay: time.Millisecond}, WithClock(f.clock.Now), WithPublisher(f.events))

	f.alice = mustUser(t, database, "alice")
	f.bob = mustUser(t, database, "bob")
	f.carol = mustUser(t, database, "carol")

	v, err := f.svc.CreateVault(ctx, f.alice.ID, "Family papers")
	require.NoError(t, err)
	f.vault = v
	return f
}

func mustUser(t *testing.T, q db.Querier, username string) *model.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), q, username, "", username+"@example.com", "hash", model.RoleUser)
	require.NoError(t, err)
	return u
}

// acceptedNominee invites name to the fixture vault and redeems the invite as
// user.
func (f *fixture) acceptedNominee(t *testing.T, name string, user *model.User) *model.Nominee {
	t.Helper()
	ctx := context.Background()

	inv, err := f.svc.IssueInvite(ctx, f.vault.ID, name, model.Contact{}, f.alice.ID)
	require.NoError(t, err)
	res, err := f.svc.RedeemInvite(ctx, inv.Token, user.ID)
	require.NoError(t, err)
	return res.Nominee
}
