package reaper

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-tickethub.git/internal/ledger"
	"github.com/ariefcatur/go-tickethub.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Ledger interface {
	ExpiredPending(ctx context.Context, now time.Time, limit int) ([]ledger.Order, error)
	Transition(ctx context.Context, orderID string, from, to ledger.Status) (bool, error)
}

// Reaper membatalkan order PENDING yang lewat deadline bayar. Tidak perlu
// koordinasi lock dengan webhook: transisi ledger adalah CAS, jadi pembayaran
// yang masuk di celah antara select & update cuma bikin update si reaper
// gagal guard dan di-skip. Stok & tiket tidak pernah disentuh: order yang
// belum bayar memang belum pegang apa-apa.
type Reaper struct {
	Ledger    Ledger
	Redis     *redis.Client
	Interval  time.Duration
	BatchSize int
	Logger    *logrus.Logger
}

func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cancelled, err := r.Sweep(ctx, time.Now().UTC())
			if err != nil {
				r.Logger.WithError(err).Warn("reaper sweep")
				continue
			}
			if cancelled > 0 {
				r.Logger.WithField("cancelled", cancelled).Info("expired orders cancelled")
			}
		}
	}
}

func (r *Reaper) Sweep(ctx context.Context, now time.Time) (int, error) {
	expired, err := r.Ledger.ExpiredPending(ctx, now, r.BatchSize)
	if err != nil {
		return 0, err
	}

	var cancelled int
	for _, o := range expired {
		won, err := r.Ledger.Transition(ctx, o.ID, ledger.StatusPending, ledger.StatusCancelled)
		if err != nil {
			return cancelled, err
		}
		if !won {
			continue // pembayaran menang di celah sempit itu, biarkan
		}
		cancelled++
		r.dropStatusCache(ctx, o.ID)
	}
	return cancelled, nil
}

func (r *Reaper) dropStatusCache(ctx context.Context, orderID string) {
	if r.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if err := r.Redis.Del(ctx, key).Err(); err != nil {
		r.Logger.WithError(err).WithField("order_id", orderID).Warn("drop status cache")
	}
}
