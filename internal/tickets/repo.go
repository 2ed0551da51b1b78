package tickets

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrInsufficientStock = errors.New("remaining stock below requested quantity")
	ErrUnknownTicket     = errors.New("ticket not found")
)

type Repo struct{ DB *pgxpool.Pool }

const ticketColumns = `id, order_id, buyer_id, event_id, code, status, scanned_at, scanned_by, issued_at`

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.OrderID, &t.BuyerID, &t.EventID, &t.Code, &t.Status, &t.ScannedAt, &t.ScannedBy, &t.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, ErrUnknownTicket
	}
	return t, err
}

func (r *Repo) FindByOrderID(ctx context.Context, orderID string) ([]Ticket, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE order_id=$1 ORDER BY issued_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) FindByCode(ctx context.Context, code string) (Ticket, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE code=$1`, code)
	return scanTicket(row)
}

// IssueBatch: satu tx untuk seluruh unit atomik penerbitan.
// Lock row order dulu (FOR UPDATE) supaya dua delivery webhook yang lolos
// bersamaan terserialisasi; lalu decrement-if-available ke stok event, baru
// insert batch tiket. Kalau tiket sudah ada untuk order ini, return existing
// tanpa menyentuh stok (idempotent di order_id).
func (r *Repo) IssueBatch(ctx context.Context, eventID, orderID string, ts []Ticket) ([]Ticket, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT 1 FROM orders WHERE id=$1 FOR UPDATE`, orderID); err != nil {
		return nil, false, err
	}

	var existing int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM tickets WHERE order_id=$1`, orderID).Scan(&existing); err != nil {
		return nil, false, err
	}
	if existing > 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, false, err
		}
		got, err := r.FindByOrderID(ctx, orderID)
		return got, false, err
	}

	// guard oversell: decrement hanya kalau stok cukup, satu statement
	ct, err := tx.Exec(ctx, `
		UPDATE events SET remaining_stock = remaining_stock - $2
		WHERE id=$1 AND remaining_stock >= $2
	`, eventID, len(ts))
	if err != nil {
		return nil, false, err
	}
	if ct.RowsAffected() != 1 {
		return nil, false, ErrInsufficientStock
	}

	for _, t := range ts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO tickets(id, order_id, buyer_id, event_id, code, status, issued_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, t.ID, t.OrderID, t.BuyerID, t.EventID, t.Code, t.Status, t.IssuedAt); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return ts, true, nil
}

// MarkScanned: CAS ACTIVE->SCANNED. Dua device yang scan kode sama berbarengan
// cuma satu yang dapat rows affected = 1.
func (r *Repo) MarkScanned(ctx context.Context, code, operatorID string, at time.Time) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE tickets SET status=$2, scanned_at=$3, scanned_by=$4
		WHERE code=$1 AND status=$5
	`, code, StatusScanned, at, operatorID, StatusActive)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
