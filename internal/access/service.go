// Package access implements vault sharing: nominee invitations, ownership
// transfers, their single-use capability tokens, and the gate on the secure
// channel between an owner and a nominee.
//
// Every state-changing operation runs as one database transaction. Lost
// compare-and-swap races surface as model.ErrStorageConflict and the whole
// operation is re-run a bounded number of times.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
	"github.com/erazemk/zaupnik/internal/notify"
)

// Publisher receives change events after they are committed.
type Publisher interface {
	Publish(events ...notify.Event)
}

// Config holds the service's tunables.
type Config struct {
	TransferWindow time.Duration
	RetryAttempts  uint
	RetryDelay     time.Duration
	LinkScheme     string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TransferWindow: model.DefaultTransferWindow,
		RetryAttempts:  5,
		RetryDelay:     20 * time.Millisecond,
		LinkScheme:     model.DefaultLinkScheme,
	}
}

// Service is the access-control core. It is safe for concurrent use.
type Service struct {
	db        *db.DB
	cfg       Config
	now       func() time.Time
	publisher Publisher
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher sets where committed changes are announced.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// New creates a Service. Zero config fields fall back to DefaultConfig.
func New(database *db.DB, cfg Config, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.TransferWindow <= 0 {
		cfg.TransferWindow = def.TransferWindow
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.LinkScheme == "" {
		cfg.LinkScheme = def.LinkScheme
	}

	s := &Service{db: database, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// clock returns the current time truncated to microseconds, the precision
// every supported backend round-trips.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// run executes fn, re-running it while it fails with a storage conflict.
// fn must redo all its reads; nothing from a failed attempt is reused.
func (s *Service) run(ctx context.Context, op string, fn func() error) error {
	err := retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(s.cfg.RetryAttempts),
		retry.Delay(s.cfg.RetryDelay),
		retry.MaxJitter(s.cfg.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, model.ErrStorageConflict)
		}),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("retrying after storage conflict", "op", op, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) publish(events []notify.Event) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	s.publisher.Publish(events...)
}

func event(vaultID string, kind notify.Kind, subjectID string, at time.Time) notify.Event {
	return notify.Event{VaultID: vaultID, Kind: kind, SubjectID: subjectID, At: at}
}
