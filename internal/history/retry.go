package history

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"speech-analytics-go/internal/types"
)

// Retrying retries failed store calls with exponential backoff until
// MaxElapsed passes or the context ends. A zero MaxElapsed means
// DefaultMaxElapsed.
type Retrying struct {
	Store      Store
	MaxElapsed time.Duration
}

var (
	_ Store  = (*Retrying)(nil)
	_ Lister = (*Retrying)(nil)
)

// ErrNotListable is returned by Keys when the wrapped store cannot list keys.
var ErrNotListable = errors.New("history: store cannot list keys")

const DefaultMaxElapsed = 2 * time.Second

func NewRetrying(s Store, maxElapsed time.Duration) *Retrying {
	return &Retrying{Store: s, MaxElapsed: maxElapsed}
}

func (r *Retrying) Fetch(ctx context.Context, key string) ([]types.HistoricalRecord, error) {
	var recs []types.HistoricalRecord
	op := func() error {
		var err error
		recs, err = r.Store.Fetch(ctx, key)
		return permanentIf(err)
	}
	if err := backoff.Retry(op, r.policy(ctx)); err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *Retrying) Append(ctx context.Context, key string, rec types.HistoricalRecord) error {
	op := func() error {
		return permanentIf(r.Store.Append(ctx, key, rec))
	}
	return backoff.Retry(op, r.policy(ctx))
}

func (r *Retrying) Keys(ctx context.Context) ([]string, error) {
	l, ok := r.Store.(Lister)
	if !ok {
		return nil, ErrNotListable
	}
	var keys []string
	op := func() error {
		var err error
		keys, err = l.Keys(ctx)
		return permanentIf(err)
	}
	if err := backoff.Retry(op, r.policy(ctx)); err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *Retrying) policy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = r.MaxElapsed
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = DefaultMaxElapsed
	}
	return backoff.WithContext(bo, ctx)
}

// permanentIf stops retrying for errors that cannot succeed on a later attempt.
func permanentIf(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEmptyKey) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	return err
}
