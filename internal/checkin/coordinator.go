package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-tickethub.git/internal/realtime"
	"github.com/ariefcatur/go-tickethub.git/internal/tickets"
	"github.com/sirupsen/logrus"
)

type Result string

const (
	ResultSuccess     Result = "success"
	ResultAlreadyUsed Result = "already_used"
	ResultCancelled   Result = "cancelled"
	ResultRefunded    Result = "refunded"
	ResultUnknown     Result = "unknown"
)

type TicketStore interface {
	FindByCode(ctx context.Context, code string) (tickets.Ticket, error)
	MarkScanned(ctx context.Context, code, operatorID string, at time.Time) (bool, error)
}

// StatusCache dipakai buat invalidasi cache status order milik tiket
// yang baru di-scan, sama seperti jalur webhook dan reaper.
type StatusCache interface {
	Drop(ctx context.Context, orderID string)
}

type Coordinator struct {
	Tickets   TicketStore
	Publisher realtime.Publisher
	Cache     StatusCache
	Logger    *logrus.Logger
}

// Scan memvalidasi kode tiket di gate. Transisi ACTIVE->SCANNED memakai
// guard compare-and-swap yang sama dengan ledger: dua device yang scan kode
// sama berbarengan resolve ke tepat satu pemenang.
func (c *Coordinator) Scan(ctx context.Context, code, operatorID string) (Result, tickets.Ticket, error) {
	now := time.Now().UTC()

	won, err := c.Tickets.MarkScanned(ctx, code, operatorID, now)
	if err != nil {
		return "", tickets.Ticket{}, err
	}

	t, err := c.Tickets.FindByCode(ctx, code)
	if errors.Is(err, tickets.ErrUnknownTicket) {
		c.Logger.WithField("code", code).Warn("scan of unknown ticket code")
		return ResultUnknown, tickets.Ticket{}, nil
	}
	if err != nil {
		return "", tickets.Ticket{}, err
	}

	if won {
		// status tiket berubah, jalur pull harus lihat SCANNED segera
		if c.Cache != nil {
			c.Cache.Drop(ctx, t.OrderID)
		}
		c.publishScanned(ctx, t)
		return ResultSuccess, t, nil
	}

	// guard kalah: tiket sudah bukan ACTIVE. Kirim alert duplikat bawa info
	// scan asli; operator butuh itu buat keputusan di pintu.
	c.publishDuplicate(ctx, t, operatorID)
	switch t.Status {
	case tickets.StatusCancelled:
		return ResultCancelled, t, nil
	case tickets.StatusRefunded:
		return ResultRefunded, t, nil
	default:
		return ResultAlreadyUsed, t, nil
	}
}

func (c *Coordinator) publishScanned(ctx context.Context, t tickets.Ticket) {
	var at time.Time
	var by string
	if t.ScannedAt != nil {
		at = *t.ScannedAt
	}
	if t.ScannedBy != nil {
		by = *t.ScannedBy
	}
	e := realtime.NewEvent(realtime.TypeTicketScanned, realtime.TicketScannedPayload{
		Code: t.Code, OrderID: t.OrderID, EventID: t.EventID, BuyerID: t.BuyerID,
		ScannedAt: at, ScannedBy: by,
	})
	c.Publisher.Publish(ctx, realtime.EventTopic(t.EventID), e)
	c.Publisher.Publish(ctx, realtime.UserTopic(t.BuyerID), e)
}

func (c *Coordinator) publishDuplicate(ctx context.Context, t tickets.Ticket, attemptedBy string) {
	e := realtime.NewEvent(realtime.TypeDuplicateAlert, realtime.DuplicateAlertPayload{
		Code: t.Code, EventID: t.EventID, Status: string(t.Status),
		ScannedAt: t.ScannedAt, ScannedBy: t.ScannedBy, AttemptedBy: attemptedBy,
	})
	c.Publisher.Publish(ctx, realtime.EventTopic(t.EventID), e)
}
