/*
Package events mirrors appended ledger transactions to Kafka.

PURPOSE:
  Downstream consumers (reports, notifications) follow the consequence log
  without reading the database. Mirror decorates a generic.Store: after a
  successful Append it publishes the transaction, keyed by profile ID so
  one profile's events stay ordered within a partition.

FAILURE POLICY:
  The log is the source of truth. A publish failure is logged and counted,
  never returned: the append already happened and the caregiver must not
  see an error for it.

MESSAGE FORMAT:
  key:     profile ID
  headers: event-type = consequence | consequence_reversal
  value:   TransactionEvent as JSON

SEE ALSO:
  - generic/store.go: Store interface being decorated
*/
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/warp/consequence-ledger/generic"
	"github.com/warp/consequence-ledger/observability"
)

// Writer is the subset of *kafka.Writer the mirror needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a synchronous writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}
}

// TransactionEvent is the published form of a transaction.
type TransactionEvent struct {
	ID              string    `json:"id"`
	ProfileID       string    `json:"profile_id"`
	Type            string    `json:"type"`
	ConsequenceType string    `json:"consequence_type"`
	Amount          string    `json:"amount"`
	Unit            string    `json:"unit"`
	TargetSession   string    `json:"target_session,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Label           string    `json:"label,omitempty"`
	CreatedBy       string    `json:"created_by,omitempty"`
}

// NewTransactionEvent converts a transaction to its published form.
func NewTransactionEvent(tx generic.Transaction) TransactionEvent {
	return TransactionEvent{
		ID:              string(tx.ID),
		ProfileID:       string(tx.ProfileID),
		Type:            string(tx.Type),
		ConsequenceType: tx.ConsequenceType,
		Amount:          tx.Amount.Value.String(),
		Unit:            string(tx.Amount.Unit),
		TargetSession:   string(tx.TargetSession),
		Timestamp:       tx.Timestamp,
		Label:           tx.Label,
		CreatedBy:       tx.CreatedBy,
	}
}

// Mirror is a generic.Store that publishes every successful append.
type Mirror struct {
	generic.Store
	writer  Writer
	timeout time.Duration
}

var _ generic.Store = (*Mirror)(nil)

// NewMirror wraps store so appends are mirrored through writer.
func NewMirror(store generic.Store, writer Writer) *Mirror {
	return &Mirror{Store: store, writer: writer, timeout: 5 * time.Second}
}

// Append persists tx and then publishes it. Only the persist step can fail
// the call.
func (m *Mirror) Append(ctx context.Context, tx generic.Transaction) error {
	if err := m.Store.Append(ctx, tx); err != nil {
		return err
	}
	m.publish(ctx, tx)
	return nil
}

func (m *Mirror) publish(ctx context.Context, tx generic.Transaction) {
	value, err := json.Marshal(NewTransactionEvent(tx))
	if err != nil {
		log.Printf("[Mirror] Encoding %s failed: %v", tx.ID, err)
		observability.RecordMirrorFailure()
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:     []byte(tx.ProfileID),
		Value:   value,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(tx.Type)}},
	}
	if err := m.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("[Mirror] Publishing %s for %s failed: %v", tx.Type, tx.ProfileID, err)
		observability.RecordMirrorFailure()
	}
}

// Close releases the writer. The wrapped store is left open.
func (m *Mirror) Close() error {
	return m.writer.Close()
}
