package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-tickethub.git/internal/fees"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUnknownOrder = errors.New("order not found")
var ErrUnknownEvent = errors.New("event not found")

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `
	id, external_ref, buyer_id, event_id, quantity, unit_price, gross_amount,
	gateway_fee, platform_fee, net_payout, status, payment_method,
	payment_instrument, oversold, expires_at, created_at, completed_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.ExternalRef, &o.BuyerID, &o.EventID, &o.Quantity, &o.UnitPrice, &o.GrossAmount,
		&o.GatewayFee, &o.PlatformFee, &o.NetPayout, &o.Status, &o.PaymentMethod,
		&o.PaymentInstrument, &o.Oversold, &o.ExpiresAt, &o.CreatedAt, &o.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrUnknownOrder
	}
	return o, err
}

func (r *Repo) CreateOrder(ctx context.Context, o Order) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders(
			id, external_ref, buyer_id, event_id, quantity, unit_price, gross_amount,
			status, payment_method, expires_at, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, o.ID, o.ExternalRef, o.BuyerID, o.EventID, o.Quantity, o.UnitPrice, o.GrossAmount,
		o.Status, o.PaymentMethod, o.ExpiresAt, o.CreatedAt)
	return err
}

func (r *Repo) FindByID(ctx context.Context, orderID string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID)
	return scanOrder(row)
}

func (r *Repo) FindByExternalRef(ctx context.Context, ref string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_ref=$1`, ref)
	return scanOrder(row)
}

func (r *Repo) FindManyByBuyer(ctx context.Context, buyerID string, offset, limit int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE buyer_id=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3
	`, buyerID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) GetEvent(ctx context.Context, eventID string) (Event, error) {
	var e Event
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, unit_price, total_stock, remaining_stock FROM events WHERE id=$1
	`, eventID).Scan(&e.ID, &e.Name, &e.UnitPrice, &e.TotalStock, &e.RemainingStock)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, ErrUnknownEvent
	}
	return e, err
}

// Transition: compare-and-swap pada status. Return false kalau guard kalah
// (order sudah bukan `from`); caller memperlakukan itu sebagai no-op replay.
func (r *Repo) Transition(ctx context.Context, orderID string, from, to Status) (bool, error) {
	if !CanTransition(from, to) {
		return false, nil
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$3 WHERE id=$1 AND status=$2
	`, orderID, from, to)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// MarkPaid: CAS PENDING->PAID sekaligus attach fee breakdown + tulis fee_audit
// dalam satu tx. Kalau guard kalah, tidak ada row yang berubah.
func (r *Repo) MarkPaid(ctx context.Context, orderID string, b fees.Breakdown, now time.Time) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET status=$2, gateway_fee=$3, platform_fee=$4, net_payout=$5, completed_at=$6
		WHERE id=$1 AND status=$7
	`, orderID, StatusPaid, b.GatewayFee, b.PlatformFee, b.NetPayout, now, StatusPending)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() != 1 {
		return false, nil // rollback via defer, guard kalah
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO fee_audit(order_id, gross_amount, gateway_fee, platform_fee, net_payout, payment_method, recorded_at)
		SELECT id, gross_amount, gateway_fee, platform_fee, net_payout, payment_method, $2
		FROM orders WHERE id=$1
	`, orderID, now); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SetPaymentInstrument dipersist begitu gateway kasih nomor VA, apapun status
// akhirnya, supaya buyer bisa lihat nomor bayar sebelum settlement.
func (r *Repo) SetPaymentInstrument(ctx context.Context, orderID, instrument string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_instrument=$2 WHERE id=$1 AND payment_instrument IS DISTINCT FROM $2
	`, orderID, instrument)
	return err
}

// ForceFail menandai order FAILED + flag oversold di luar mesin status normal.
// Dipakai issuer saat race webhook bikin stok habis setelah order terlanjur PAID.
func (r *Repo) ForceFail(ctx context.Context, orderID string, oversold bool) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, oversold=$3 WHERE id=$1
	`, orderID, StatusFailed, oversold)
	return err
}

func (r *Repo) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status=$1 AND expires_at <= $2
		ORDER BY expires_at LIMIT $3
	`, StatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Refund: PAID->REFUNDED plus tiket aktif ikut REFUNDED, satu tx (lockstep).
func (r *Repo) Refund(ctx context.Context, orderID string) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2 WHERE id=$1 AND status=$3
	`, orderID, StatusRefunded, StatusPaid)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() != 1 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE tickets SET status='REFUNDED' WHERE order_id=$1 AND status='ACTIVE'
	`, orderID); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
