package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message kinds carried on the sync queue.
const (
	KindSync   = "sync"
	KindDelete = "delete"
)

// SyncMessage asks the worker to mirror one transaction to the ledger
// spreadsheet. It carries only the ID; the worker fetches the current
// row from the database so stale queue contents never overwrite newer
// edits.
type SyncMessage struct {
	Kind          string    `json:"kind"`
	TransactionID int64     `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// DeleteMessage asks the worker to remove a transaction's ledger row.
// The database row is already gone by the time this is consumed, so the
// ID is all there is; the worker locates the ledger row by it.
type DeleteMessage struct {
	Kind          string    `json:"kind"`
	TransactionID int64     `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewSyncMessage(transactionID int64) *SyncMessage {
	return &SyncMessage{
		Kind:          KindSync,
		TransactionID: transactionID,
		Timestamp:     time.Now().UTC(),
	}
}

func NewDeleteMessage(transactionID int64) *DeleteMessage {
	return &DeleteMessage{
		Kind:          KindDelete,
		TransactionID: transactionID,
		Timestamp:     time.Now().UTC(),
	}
}

// envelope is the minimal decode used to route a raw delivery.
type envelope struct {
	Kind string `json:"kind"`
}

// DecodeKind extracts the message kind from a raw delivery body.
func DecodeKind(body []byte) (string, error) {
	var e envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return "", fmt.Errorf("decode message envelope: %w", err)
	}
	switch e.Kind {
	case KindSync, KindDelete:
		return e.Kind, nil
	}
	return "", fmt.Errorf("unknown message kind %q", e.Kind)
}

func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func DeleteMessageFromJSON(data []byte) (*DeleteMessage, error) {
	var msg DeleteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
