package ledger

const (
	TopicOrderPaid    = "order.paid"
	TopicOrderFailed  = "order.failed"
	TopicTicketIssued = "ticket.issued"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
