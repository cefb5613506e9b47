package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"example.com/activityplanner/internal/domain"
	"example.com/activityplanner/internal/events"
)

const resolutionColumns = `resolution_id, title, code, issued_at, deadline, category, issued_by, attachments,
        created_by, created_at, updated_at, version`

const sessionColumns = `session_id, resolution_id, held_at, format, participants, status, video_url, documents`

// CreateResolution implements domain.ResolutionRepository.
func (r *Repository) CreateResolution(ctx context.Context, resolution domain.Resolution, change domain.ResolutionChange) error {
	attachments, err := json.Marshal(toFileRecords(resolution.Attachments))
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		const stmt = `INSERT INTO resolutions (` + resolutionColumns + `, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
		if _, err := tx.Exec(ctx, stmt,
			resolution.ID,
			resolution.Title,
			resolution.Code,
			resolution.IssuedAt,
			resolution.Deadline,
			string(resolution.Category),
			resolution.IssuedBy,
			attachments,
			resolution.CreatedBy,
			resolution.CreatedAt,
			resolution.UpdatedAt,
			resolution.Version,
			string(resolution.Status()),
		); err != nil {
			return err
		}
		if err := insertSessions(ctx, tx, resolution); err != nil {
			return err
		}
		eventType, payload := events.ForResolution(resolution, change)
		return insertOutbox(ctx, tx, events.AggregateResolution, resolution.ID, eventType, payload)
	})
}

// GetResolution implements domain.ResolutionRepository.
func (r *Repository) GetResolution(ctx context.Context, id string) (*domain.Resolution, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+resolutionColumns+` FROM resolutions WHERE resolution_id=$1`, id)
	resolution, err := scanResolution(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	sessions, err := r.loadSessions(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	resolution.Sessions = sessions[id]
	return &resolution, nil
}

// ReplaceResolution implements domain.ResolutionRepository. Sessions are rewritten with the
// record.
func (r *Repository) ReplaceResolution(ctx context.Context, resolution domain.Resolution, expectedVersion int, change domain.ResolutionChange) error {
	attachments, err := json.Marshal(toFileRecords(resolution.Attachments))
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		const stmt = `UPDATE resolutions SET
            title=$2, code=$3, issued_at=$4, deadline=$5, category=$6, issued_by=$7, attachments=$8,
            status=$9, updated_at=$10, version=$11
        WHERE resolution_id=$1 AND version=$12`
		tag, err := tx.Exec(ctx, stmt,
			resolution.ID,
			resolution.Title,
			resolution.Code,
			resolution.IssuedAt,
			resolution.Deadline,
			string(resolution.Category),
			resolution.IssuedBy,
			attachments,
			string(resolution.Status()),
			resolution.UpdatedAt,
			resolution.Version,
			expectedVersion,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return resolutionMissingOrStale(ctx, tx, resolution.ID)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM study_sessions WHERE resolution_id=$1`, resolution.ID); err != nil {
			return err
		}
		if err := insertSessions(ctx, tx, resolution); err != nil {
			return err
		}
		eventType, payload := events.ForResolution(resolution, change)
		return insertOutbox(ctx, tx, events.AggregateResolution, resolution.ID, eventType, payload)
	})
}

// DeleteResolution implements domain.ResolutionRepository. Sessions go with the record.
func (r *Repository) DeleteResolution(ctx context.Context, id string, expectedVersion int, change domain.ResolutionChange) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM resolutions WHERE resolution_id=$1 AND version=$2`, id, expectedVersion)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return resolutionMissingOrStale(ctx, tx, id)
		}
		eventType, payload := events.ForResolutionDelete(change)
		return insertOutbox(ctx, tx, events.AggregateResolution, id, eventType, payload)
	})
}

// ListResolutions implements domain.ResolutionRepository.
func (r *Repository) ListResolutions(ctx context.Context, filter domain.ResolutionFilter) ([]domain.Resolution, error) {
	query, args := buildResolutionQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Resolution, 0)
	ids := make([]string, 0)
	for rows.Next() {
		resolution, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, resolution)
		ids = append(ids, resolution.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return results, nil
	}

	sessions, err := r.loadSessions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Sessions = sessions[results[i].ID]
	}
	return results, nil
}

// SeedResolutionsIfEmpty stores seed resolutions when the table holds none. It reports how
// many were inserted.
func (r *Repository) SeedResolutionsIfEmpty(ctx context.Context, seed []domain.Resolution) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM resolutions`).Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	for _, resolution := range seed {
		if resolution.Version == 0 {
			resolution.Version = 1
		}
		change := domain.ResolutionChange{
			ResolutionID: resolution.ID,
			Action:       domain.ResolutionCreate,
			Actor:        resolution.CreatedBy,
			At:           resolution.CreatedAt,
		}
		if err := r.CreateResolution(ctx, resolution, change); err != nil {
			return 0, fmt.Errorf("seed resolution %s: %w", resolution.ID, err)
		}
	}
	return len(seed), nil
}

func (r *Repository) loadSessions(ctx context.Context, ids []string) (map[string][]domain.StudySession, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM study_sessions
        WHERE resolution_id = ANY($1) ORDER BY resolution_id, position`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.StudySession, len(ids))
	for rows.Next() {
		var (
			s                            domain.StudySession
			resolutionID, format, status string
			documents                    []byte
		)
		if err := rows.Scan(&s.ID, &resolutionID, &s.HeldAt, &format, &s.Participants, &status, &s.VideoURL, &documents); err != nil {
			return nil, err
		}
		s.HeldAt = s.HeldAt.UTC()
		s.Format = domain.StudyFormat(format)
		s.Status = domain.SessionStatus(status)
		var files []fileRecord
		if err := json.Unmarshal(documents, &files); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", s.ID, err)
		}
		s.Documents = fromFileRecords(files)
		out[resolutionID] = append(out[resolutionID], s)
	}
	return out, rows.Err()
}

func insertSessions(ctx context.Context, tx pgx.Tx, resolution domain.Resolution) error {
	if len(resolution.Sessions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, s := range resolution.Sessions {
		documents, err := json.Marshal(toFileRecords(s.Documents))
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO study_sessions (`+sessionColumns+`, position)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			s.ID, resolution.ID, s.HeldAt, string(s.Format), s.Participants, string(s.Status), s.VideoURL, documents, i)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func resolutionMissingOrStale(ctx context.Context, tx pgx.Tx, id string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM resolutions WHERE resolution_id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return domain.ErrVersionConflict
	}
	return domain.ErrResolutionNotFound
}

func buildResolutionQuery(filter domain.ResolutionFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := arg("%" + escapeLike(strings.ToLower(q)) + "%")
		where = append(where, "(LOWER(title) LIKE "+pattern+" OR LOWER(code) LIKE "+pattern+")")
	}

	query := `SELECT ` + resolutionColumns + ` FROM resolutions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query + " ORDER BY issued_at DESC, resolution_id DESC", args
}

func scanResolution(row pgx.Row) (domain.Resolution, error) {
	var (
		res         domain.Resolution
		category    string
		attachments []byte
	)
	if err := row.Scan(
		&res.ID,
		&res.Title,
		&res.Code,
		&res.IssuedAt,
		&res.Deadline,
		&category,
		&res.IssuedBy,
		&attachments,
		&res.CreatedBy,
		&res.CreatedAt,
		&res.UpdatedAt,
		&res.Version,
	); err != nil {
		return domain.Resolution{}, err
	}
	res.Category = domain.StudyFormat(category)
	res.IssuedAt = res.IssuedAt.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	res.UpdatedAt = res.UpdatedAt.UTC()
	if res.Deadline != nil {
		deadline := res.Deadline.UTC()
		res.Deadline = &deadline
	}
	var files []fileRecord
	if err := json.Unmarshal(attachments, &files); err != nil {
		return domain.Resolution{}, fmt.Errorf("decode resolution %s: %w", res.ID, err)
	}
	res.Attachments = fromFileRecords(files)
	return res, nil
}
