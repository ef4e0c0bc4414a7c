// Package audit records authentication events for after-the-fact review.
// Events fan out to Kafka for downstream consumers and accumulate in a
// buffer that flushes to ClickHouse in batches. Recording is best effort:
// an unreachable sink never fails a login.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"repairshop-api/internal/client"
	"repairshop-api/internal/clock"
	"repairshop-api/internal/session"
	"repairshop-api/internal/util"
)

const (
	EventLogin  = "login"
	EventLogout = "logout"

	// flushThreshold caps the in-memory buffer between janitor flushes.
	flushThreshold = 200
)

// Event is one authentication outcome.
type Event struct {
	ID          string    `json:"event_id"`
	Type        string    `json:"type"`
	Kind        string    `json:"kind"`
	PrincipalID string    `json:"principal_id,omitempty"`
	IP          string    `json:"ip,omitempty"`
	Success     bool      `json:"success"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

const insertQuery = `INSERT INTO auth_events
	(event_id, type, kind, principal_id, ip, success, reason, occurred_at)`

// Recorder implements the event sink for the login pipeline. Either sink
// may be nil when the corresponding backend is disabled.
type Recorder struct {
	producer   *client.KafkaProducer
	clickhouse *client.ClickHouseClient
	topic      string
	clock      clock.Clock

	mu      sync.Mutex
	pending []*Event
}

func NewRecorder(producer *client.KafkaProducer, clickhouse *client.ClickHouseClient, topic string, clk clock.Clock) *Recorder {
	return &Recorder{
		producer:   producer,
		clickhouse: clickhouse,
		topic:      topic,
		clock:      clk,
	}
}

func (r *Recorder) RecordLogin(ctx context.Context, kind session.Kind, principalID, ip string, success bool, reason string) {
	r.record(ctx, &Event{
		Type:        EventLogin,
		Kind:        string(kind),
		PrincipalID: principalID,
		IP:          ip,
		Success:     success,
		Reason:      reason,
	})
}

func (r *Recorder) RecordLogout(ctx context.Context, kind session.Kind, principalID string) {
	r.record(ctx, &Event{
		Type:        EventLogout,
		Kind:        string(kind),
		PrincipalID: principalID,
		Success:     true,
	})
}

func (r *Recorder) record(ctx context.Context, ev *Event) {
	ev.ID = uuid.New().String()
	ev.OccurredAt = r.clock.Now().UTC()

	if r.producer != nil {
		payload, err := json.Marshal(ev)
		if err == nil {
			if err := r.producer.ProduceMessage(ctx, r.topic, []byte(ev.Type), payload, nil); err != nil {
				util.Warn("failed to publish auth event", util.ErrorField(err))
			}
		}
	}

	if r.clickhouse == nil {
		return
	}

	r.mu.Lock()
	r.pending = append(r.pending, ev)
	full := len(r.pending) >= flushThreshold
	r.mu.Unlock()

	if full {
		r.Flush(ctx)
	}
}

// Flush writes buffered events to ClickHouse. The janitor calls it on its
// interval; a failed batch is dropped after logging, never retried into
// the hot path.
func (r *Recorder) Flush(ctx context.Context) {
	if r.clickhouse == nil {
		return
	}

	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	rows := make([][]interface{}, 0, len(batch))
	for _, ev := range batch {
		rows = append(rows, []interface{}{
			ev.ID, ev.Type, ev.Kind, ev.PrincipalID,
			ev.IP, ev.Success, ev.Reason, ev.OccurredAt,
		})
	}

	if err := r.clickhouse.BatchInsert(ctx, insertQuery, rows); err != nil {
		util.Warn("failed to flush auth events",
			util.Int("events", len(rows)),
			util.ErrorField(err))
	}
}
