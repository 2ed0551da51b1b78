package realtime

import "fmt"

// Topic per event (untuk operator gate) dan per buyer.
func EventTopic(eventID string) string { return fmt.Sprintf("event:%s", eventID) }
func UserTopic(buyerID string) string  { return fmt.Sprintf("user:%s", buyerID) }
