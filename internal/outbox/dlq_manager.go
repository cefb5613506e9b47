package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/activityplanner/internal/logging"
)

const maxBackoff = time.Hour

// DLQManager retries failed outbox messages and quarantines entries that exhaust their retries.
type DLQManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	baseDelay  time.Duration
	log        logging.Logger
}

// NewDLQManager constructs a DLQManager with the provided pool and retry configuration.
func NewDLQManager(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration, log logging.Logger) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	if log == nil {
		log = logging.Nop()
	}
	return &DLQManager{pool: pool, maxRetries: maxRetries, baseDelay: baseDelay, log: log}
}

// RunOnce processes a batch of due DLQ entries and returns how many were handled without
// error.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	const query = `SELECT dlq_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count
                    FROM outbox_dlq
                   WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
                   ORDER BY created_at
                   LIMIT $1`

	rows, err := m.pool.Query(ctx, query, batchSize)
	if err != nil {
		return 0, err
	}
	entries := make([]dlqEntry, 0, batchSize)
	for rows.Next() {
		entry, scanErr := scanDLQEntry(rows)
		if scanErr != nil {
			err = errors.Join(err, scanErr)
			continue
		}
		entries = append(entries, entry)
	}
	rows.Close()
	if rowsErr := rows.Err(); rowsErr != nil {
		err = errors.Join(err, rowsErr)
	}

	processed := 0
	for _, entry := range entries {
		if procErr := m.handleEntry(ctx, entry); procErr != nil {
			err = errors.Join(err, procErr)
			continue
		}
		processed++
	}
	updateBacklogGauge(ctx, m.pool)
	return processed, err
}

// handleEntry applies retry/quarantine logic for a single DLQ entry.
func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if entry.RetryCount >= m.maxRetries {
		if _, err := tx.Exec(ctx, `UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`, "retry limit reached", entry.ID); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		recordDLQOutcome(entry, dlqOutcomeQuarantined)
		m.log.Warn(ctx, "dlq entry quarantined", "dlq_id", entry.ID, "event_type", entry.EventType, "retries", entry.RetryCount)
		return nil
	}

	if insertErr := requeueOutbox(ctx, tx, entry); insertErr != nil {
		// The failed insert aborted the transaction; schedule the retry in a fresh one.
		_ = tx.Rollback(ctx)
		return m.scheduleRetry(ctx, entry, insertErr)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	recordDLQOutcome(entry, dlqOutcomeRequeued)
	m.log.Info(ctx, "dlq entry requeued", "dlq_id", entry.ID, "event_type", entry.EventType, "aggregate_id", entry.AggregateID)
	return nil
}

func (m *DLQManager) scheduleRetry(ctx context.Context, entry dlqEntry, cause error) error {
	delay := m.backoffDelay(entry.RetryCount + 1)
	if _, err := m.pool.Exec(ctx,
		`UPDATE outbox_dlq
            SET retry_count = retry_count + 1,
                last_attempt_at = NOW(),
                next_retry_at = NOW() + make_interval(secs => $1),
                reason = $2
          WHERE dlq_id = $3`,
		delay.Seconds(), cause.Error(), entry.ID,
	); err != nil {
		return err
	}
	recordDLQOutcome(entry, dlqOutcomeRetry)
	m.log.Warn(ctx, "dlq requeue failed, retry scheduled", "dlq_id", entry.ID, "delay", delay.String(), "error", cause)
	return nil
}

// backoffDelay doubles baseDelay per attempt, capped at one hour.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := m.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

// requeueOutbox reinserts the payload into the primary outbox table for replay.
func requeueOutbox(ctx context.Context, tx pgx.Tx, entry dlqEntry) error {
	if entry.SchemaSubject == "" {
		return fmt.Errorf("missing schema_subject for dlq entry %d", entry.ID)
	}
	if _, ok := schemaCatalog[entry.EventType]; !ok {
		return fmt.Errorf("no schema metadata for event_type=%s", entry.EventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
                   VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := tx.Exec(ctx, stmt,
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		entry.Topic,
		entry.SchemaSubject,
		entry.PartitionKey,
		entry.Payload,
	)
	return err
}

// dlqEntry represents an outbox_dlq row selected for processing.
type dlqEntry struct {
	ID            int64
	EventID       int64
	EventType     string
	Topic         string
	Payload       []byte
	Reason        string
	AggregateType string
	AggregateID   string
	SchemaSubject string
	PartitionKey  string
	RetryCount    int
}

func scanDLQEntry(rows pgx.Rows) (dlqEntry, error) {
	var entry dlqEntry
	if err := rows.Scan(&entry.ID, &entry.EventID, &entry.EventType, &entry.Topic, &entry.Payload, &entry.Reason, &entry.AggregateType, &entry.AggregateID, &entry.SchemaSubject, &entry.PartitionKey, &entry.RetryCount); err != nil {
		return dlqEntry{}, err
	}
	return entry, nil
}
