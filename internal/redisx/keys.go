package redisx

import "time"

const (
	// Cache hasil order-status query: order_status:{order_id} -> JSON response.
	// Hanya cache; kebenaran tetap di Postgres. Di-DEL tiap transisi status.
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing di worker: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
