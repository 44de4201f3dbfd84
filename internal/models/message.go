package models

import "time"

// Message represents a single inbound message. MessageID is the
// idempotency key: the store never holds two rows with the same one.
type Message struct {
	MessageID string    `json:"message_id"`
	From      string    `json:"from"` // sender MSISDN
	To        string    `json:"to"`   // recipient MSISDN
	Timestamp time.Time `json:"ts"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"-"` // server receive time, not exposed
}

// SenderCount is one entry of the per-sender message ranking.
type SenderCount struct {
	From  string `json:"from"`
	Count int64  `json:"count"`
}

// StatsSnapshot holds the aggregate view of the whole store.
// First/Last are nil when the store is empty.
type StatsSnapshot struct {
	TotalMessages     int64         `json:"total_messages"`
	SendersCount      int64         `json:"senders_count"`
	MessagesPerSender []SenderCount `json:"messages_per_sender"`
	FirstMessageTS    *time.Time    `json:"first_message_ts"`
	LastMessageTS     *time.Time    `json:"last_message_ts"`
}
