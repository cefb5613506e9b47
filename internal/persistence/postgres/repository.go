// Package postgres persists activities, resolutions, activity history and outbox events in
// PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/activityplanner/internal/domain"
	"example.com/activityplanner/internal/events"
)

const activityColumns = `activity_id, name, activity_type, organizing_unit, start_time, end_time, location, description,
        status, participants, attachments, actual, result, created_by, created_at, updated_at, version`

// Repository implements domain.ActivityRepository. Every write records a history entry and an
// outbox event in the same transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create implements domain.ActivityRepository.
func (r *Repository) Create(ctx context.Context, activity domain.Activity, entry domain.HistoryEntry) error {
	cols, err := toColumns(activity)
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		const stmt = `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
		if _, err := tx.Exec(ctx, stmt,
			activity.ID,
			activity.Name,
			string(activity.Type),
			activity.OrganizingUnit,
			activity.StartTime,
			activity.EndTime,
			activity.Location,
			activity.Description,
			string(activity.Status),
			cols.participants,
			cols.attachments,
			cols.actual,
			cols.result,
			activity.CreatedBy,
			activity.CreatedAt,
			activity.UpdatedAt,
			activity.Version,
		); err != nil {
			return err
		}
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}
		eventType, payload := events.ForCreate(activity, entry)
		return insertOutbox(ctx, tx, events.AggregateActivity, activity.ID, eventType, payload)
	})
}

// Get implements domain.ActivityRepository.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id=$1`, id)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

// Replace implements domain.ActivityRepository.
func (r *Repository) Replace(ctx context.Context, activity domain.Activity, expectedVersion int, entry domain.HistoryEntry) error {
	cols, err := toColumns(activity)
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		const stmt = `UPDATE activities SET
            name=$2, activity_type=$3, organizing_unit=$4, start_time=$5, end_time=$6, location=$7, description=$8,
            status=$9, participants=$10, attachments=$11, actual=$12, result=$13, updated_at=$14, version=$15
        WHERE activity_id=$1 AND version=$16`
		tag, err := tx.Exec(ctx, stmt,
			activity.ID,
			activity.Name,
			string(activity.Type),
			activity.OrganizingUnit,
			activity.StartTime,
			activity.EndTime,
			activity.Location,
			activity.Description,
			string(activity.Status),
			cols.participants,
			cols.attachments,
			cols.actual,
			cols.result,
			activity.UpdatedAt,
			activity.Version,
			expectedVersion,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return missingOrStale(ctx, tx, activity.ID)
		}
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}
		eventType, payload := events.ForReplace(activity, entry)
		return insertOutbox(ctx, tx, events.AggregateActivity, activity.ID, eventType, payload)
	})
}

// Delete implements domain.ActivityRepository. History rows are kept.
func (r *Repository) Delete(ctx context.Context, id string, expectedVersion int, entry domain.HistoryEntry) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM activities WHERE activity_id=$1 AND version=$2`, id, expectedVersion)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return missingOrStale(ctx, tx, id)
		}
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}
		eventType, payload := events.ForDelete(entry)
		return insertOutbox(ctx, tx, events.AggregateActivity, id, eventType, payload)
	})
}

// List implements domain.ActivityRepository.
func (r *Repository) List(ctx context.Context, filter domain.ListFilter, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	query, args := buildListQuery(filter, cursor, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if limit <= 0 || len(results) <= limit {
		return results, nil, nil
	}
	page := results[:limit]
	return page, domain.CursorFor(page[len(page)-1]), nil
}

// History implements domain.ActivityRepository.
func (r *Repository) History(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT activity_id, action, from_status, to_status, actor, occurred_at
        FROM activity_history WHERE activity_id=$1 ORDER BY history_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		var action, from, to string
		if err := rows.Scan(&entry.ActivityID, &action, &from, &to, &entry.Actor, &entry.At); err != nil {
			return nil, err
		}
		entry.Action = domain.Action(action)
		entry.From = domain.Status(from)
		entry.To = domain.Status(to)
		entry.At = entry.At.UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SeedIfEmpty stores seed activities when the table holds none. It reports how many were
// inserted.
func (r *Repository) SeedIfEmpty(ctx context.Context, seed []domain.Activity) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activities`).Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	for _, activity := range seed {
		if activity.Version == 0 {
			activity.Version = 1
		}
		entry := domain.HistoryEntry{
			ActivityID: activity.ID,
			Action:     domain.ActionCreate,
			To:         activity.Status,
			Actor:      activity.CreatedBy,
			At:         activity.CreatedAt,
		}
		if err := r.Create(ctx, activity, entry); err != nil {
			return 0, fmt.Errorf("seed %s: %w", activity.ID, err)
		}
	}
	return len(seed), nil
}

func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func missingOrStale(ctx context.Context, tx pgx.Tx, id string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM activities WHERE activity_id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return domain.ErrVersionConflict
	}
	return domain.ErrActivityNotFound
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry domain.HistoryEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO activity_history (activity_id, action, from_status, to_status, actor, occurred_at)
        VALUES ($1,$2,$3,$4,$5,$6)`,
		entry.ActivityID, string(entry.Action), string(entry.From), string(entry.To), entry.Actor, entry.At,
	)
	return err
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	route, err := events.RouteFor(eventType)
	if err != nil {
		return err
	}
	if route.Aggregate != aggregateType {
		return fmt.Errorf("event %s belongs to %s, not %s", eventType, route.Aggregate, aggregateType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err = tx.Exec(ctx, stmt,
		aggregateType,
		aggregateID,
		eventType,
		route.Topic,
		route.SchemaSubject,
		aggregateID,
		body,
	)
	return err
}

// buildListQuery translates filter into SQL. A positive limit fetches one extra row to detect
// the next page.
func buildListQuery(filter domain.ListFilter, cursor *domain.Cursor, limit int) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if statuses := filter.View.Statuses(); statuses != nil {
		values := make([]string, 0, len(statuses))
		for _, s := range statuses {
			values = append(values, string(s))
		}
		where = append(where, "status = ANY("+arg(values)+")")
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.Type != "" {
		where = append(where, "activity_type = "+arg(string(filter.Type)))
	}
	if filter.Unit != "" {
		where = append(where, "organizing_unit = "+arg(filter.Unit))
	}
	if !filter.From.IsZero() {
		where = append(where, "start_time >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "start_time < "+arg(filter.To))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := arg("%" + escapeLike(strings.ToLower(q)) + "%")
		clauses := []string{"LOWER(name) LIKE " + pattern, "LOWER(organizing_unit) LIKE " + pattern}
		if filter.SearchesLocation() {
			clauses = append(clauses, "LOWER(location) LIKE "+pattern)
		}
		where = append(where, "("+strings.Join(clauses, " OR ")+")")
	}
	if cursor != nil {
		where = append(where, fmt.Sprintf("(start_time, activity_id) < (%s, %s)", arg(cursor.StartTime), arg(cursor.ID)))
	}

	query := `SELECT ` + activityColumns + ` FROM activities`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_time DESC, activity_id DESC"
	if limit > 0 {
		query += " LIMIT " + arg(limit+1)
	}
	return query, args
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var (
		a                    domain.Activity
		activityType, status string
		cols                 columns
	)
	if err := row.Scan(
		&a.ID,
		&a.Name,
		&activityType,
		&a.OrganizingUnit,
		&a.StartTime,
		&a.EndTime,
		&a.Location,
		&a.Description,
		&status,
		&cols.participants,
		&cols.attachments,
		&cols.actual,
		&cols.result,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.Version,
	); err != nil {
		return domain.Activity{}, err
	}
	a.Type = domain.ActivityType(activityType)
	a.Status = domain.Status(status)
	a.StartTime = a.StartTime.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	if a.EndTime != nil {
		end := a.EndTime.UTC()
		a.EndTime = &end
	}
	if err := cols.apply(&a); err != nil {
		return domain.Activity{}, fmt.Errorf("decode activity %s: %w", a.ID, err)
	}
	return a, nil
}
