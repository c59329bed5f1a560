package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/automateos/internal/domain"
)

// ExecutionLogRepo — репозиторий журнала выполнения.
type ExecutionLogRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionLogRepo создаёт новый ExecutionLogRepo.
func NewExecutionLogRepo(pool *pgxpool.Pool) *ExecutionLogRepo {
	return &ExecutionLogRepo{pool: pool}
}

const logColumns = `id, workflow_id, job_id, status, payload, result, error_message, started_at, completed_at`

// Create создаёт запись в статусе running.
func (r *ExecutionLogRepo) Create(ctx context.Context, log *domain.ExecutionLog) error {
	payloadJSON, err := json.Marshal(log.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO execution_logs (id, workflow_id, job_id, status, payload, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query,
		log.ID,
		log.WorkflowID,
		nullString(log.JobID),
		log.Status,
		payloadJSON,
		log.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}
	return nil
}

// Complete завершает запись.
// Обновляется только запись в статусе running: повторное завершение
// возвращает ErrInvalidState, отсутствующая запись — ErrNotFound.
func (r *ExecutionLogRepo) Complete(ctx context.Context, id uuid.UUID, patch domain.ExecutionLogPatch) error {
	var resultJSON []byte
	if patch.Result != nil {
		var err error
		if resultJSON, err = json.Marshal(patch.Result); err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}

	query := `
		UPDATE execution_logs
		SET status = $2, result = $3, error_message = $4, completed_at = $5
		WHERE id = $1 AND status = 'running'
	`
	result, err := r.pool.Exec(ctx, query,
		id,
		patch.Status,
		resultJSON,
		nullString(patch.ErrorMessage),
		patch.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("complete execution log: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM execution_logs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check execution log: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidState
}

// GetByID возвращает запись по ID.
func (r *ExecutionLogRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExecutionLog, error) {
	query := `SELECT ` + logColumns + ` FROM execution_logs WHERE id = $1`
	return scanExecutionLog(r.pool.QueryRow(ctx, query, id))
}

// GetByJobID возвращает последнюю запись задания.
func (r *ExecutionLogRepo) GetByJobID(ctx context.Context, jobID string) (*domain.ExecutionLog, error) {
	query := `SELECT ` + logColumns + ` FROM execution_logs WHERE job_id = $1 ORDER BY started_at DESC LIMIT 1`
	return scanExecutionLog(r.pool.QueryRow(ctx, query, jobID))
}

// ListByWorkflow возвращает записи workflow, новые первыми.
func (r *ExecutionLogRepo) ListByWorkflow(ctx context.Context, filter domain.ExecutionLogFilter) ([]domain.ExecutionLog, error) {
	filter.Normalize()

	query := `
		SELECT ` + logColumns + `
		FROM execution_logs
		WHERE workflow_id = $1
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		filter.WorkflowID,
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.ExecutionLog
	for rows.Next() {
		log, err := scanExecutionLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *log)
	}
	return logs, rows.Err()
}

// CountByWorkflow возвращает количество записей workflow.
// Пустой status — все статусы.
func (r *ExecutionLogRepo) CountByWorkflow(ctx context.Context, workflowID uuid.UUID, status domain.ExecutionStatus) (int64, error) {
	query := `
		SELECT count(*)
		FROM execution_logs
		WHERE workflow_id = $1
		  AND ($2::text IS NULL OR status = $2)
	`
	var count int64
	if err := r.pool.QueryRow(ctx, query, workflowID, nullString(string(status))).Scan(&count); err != nil {
		return 0, fmt.Errorf("count execution logs: %w", err)
	}
	return count, nil
}

// DeleteOlderThan удаляет записи, начатые раньше filter.Before.
// При DryRun только считает их.
func (r *ExecutionLogRepo) DeleteOlderThan(ctx context.Context, filter domain.CleanupFilter) (int64, error) {
	status := nullString(string(filter.Status))

	if filter.DryRun {
		query := `
			SELECT count(*)
			FROM execution_logs
			WHERE started_at < $1
			  AND ($2::text IS NULL OR status = $2)
		`
		var count int64
		if err := r.pool.QueryRow(ctx, query, filter.Before, status).Scan(&count); err != nil {
			return 0, fmt.Errorf("count old execution logs: %w", err)
		}
		return count, nil
	}

	query := `
		DELETE FROM execution_logs
		WHERE started_at < $1
		  AND ($2::text IS NULL OR status = $2)
	`
	result, err := r.pool.Exec(ctx, query, filter.Before, status)
	if err != nil {
		return 0, fmt.Errorf("delete old execution logs: %w", err)
	}
	return result.RowsAffected(), nil
}

// Stats возвращает статистику журнала.
func (r *ExecutionLogRepo) Stats(ctx context.Context, now time.Time) (*domain.LogStats, error) {
	stats := &domain.LogStats{
		ByStatus: map[string]int64{
			string(domain.ExecutionStatusSuccess): 0,
			string(domain.ExecutionStatusFailed):  0,
			string(domain.ExecutionStatusRunning): 0,
		},
		ByAge: make(map[string]int64, len(domain.StatsWindows)),
	}

	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM execution_logs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.ByStatus[status] = count
		stats.TotalLogs += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}

	for _, w := range domain.StatsWindows {
		var count int64
		err := r.pool.QueryRow(ctx,
			`SELECT count(*) FROM execution_logs WHERE started_at >= $1`, now.Add(-w.Age),
		).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", w.Label, err)
		}
		stats.ByAge[w.Label] = count
	}

	if err := r.pool.QueryRow(ctx, `SELECT min(started_at) FROM execution_logs`).Scan(&stats.OldestLog); err != nil {
		return nil, fmt.Errorf("oldest log: %w", err)
	}

	return stats, nil
}

// scanExecutionLog сканирует одну строку в ExecutionLog.
func scanExecutionLog(row pgx.Row) (*domain.ExecutionLog, error) {
	var log domain.ExecutionLog
	var payloadJSON, resultJSON []byte
	var jobID, errorMessage *string

	err := row.Scan(
		&log.ID,
		&log.WorkflowID,
		&jobID,
		&log.Status,
		&payloadJSON,
		&resultJSON,
		&errorMessage,
		&log.StartedAt,
		&log.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution log: %w", err)
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &log.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &log.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if jobID != nil {
		log.JobID = *jobID
	}
	if errorMessage != nil {
		log.ErrorMessage = *errorMessage
	}

	return &log, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
