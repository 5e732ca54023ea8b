package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Jobs ---

const jobColumns = `uid, hashed_uid, job_name, email, input_structure, strand_separator, seed,
	alternative_conformations, status, error_message, created_at, updated_at, expires_at, sum_processing_time_us`

func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		j     models.Job
		sumUS *int64
	)
	if err := row.Scan(&j.UID, &j.HashedUID, &j.JobName, &j.Email, &j.InputStructure, &j.StrandSeparator,
		&j.Seed, &j.AlternativeConformations, &j.Status, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt,
		&j.ExpiresAt, &sumUS); err != nil {
		return nil, err
	}
	if sumUS != nil {
		d := time.Duration(*sumUS) * time.Microsecond
		j.SumProcessingTime = &d
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (uid, hashed_uid, job_name, email, input_structure, strand_separator, seed,
		   alternative_conformations, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.UID, job.HashedUID, job.JobName, job.Email, job.InputStructure, job.StrandSeparator, job.Seed,
		job.AlternativeConformations, job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, uid uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE uid = $1`, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) GetJobByHash(ctx context.Context, hashedUID string) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE hashed_uid = $1`, hashedUID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job by hash: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, uid uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := ApplyJobUpdateOptions(opts...)

	// Fetch current status
	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE uid = $1`, uid).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	if !CanTransition(currentStatus, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, status)
	}

	query := `UPDATE jobs SET status = $3, updated_at = $4`
	args := []any{uid, currentStatus, status, time.Now().UTC()}
	argIdx := 5

	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}
	if params.InputStructure != nil {
		query += fmt.Sprintf(", input_structure = $%d", argIdx)
		args = append(args, *params.InputStructure)
		argIdx++
	}
	if params.ExpiresAt != nil {
		query += fmt.Sprintf(", expires_at = $%d", argIdx)
		args = append(args, params.ExpiresAt.UTC())
		argIdx++
	}

	// The status guard turns a concurrent writer into a rejected transition.
	query += " WHERE uid = $1 AND status = $2"

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, currentStatus)
	}
	return nil
}

// CompleteJob stores the user-facing input text and marks the job Completed.
// A nil expiresAt keeps the job forever.
func (s *PostgresStore) CompleteJob(ctx context.Context, uid uuid.UUID, inputStructure string, expiresAt *time.Time) error {
	opts := []JobUpdateOption{WithInputStructure(inputStructure)}
	if expiresAt != nil {
		opts = append(opts, WithExpiresAt(*expiresAt))
	}
	return s.UpdateJobStatus(ctx, uid, models.JobStatusCompleted, opts...)
}

// FinalizeProcessingTime sets the job's total processing time to the sum
// over its results.
func (s *PostgresStore) FinalizeProcessingTime(ctx context.Context, uid uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET sum_processing_time_us =
		   (SELECT COALESCE(SUM(processing_time_us), 0) FROM job_results WHERE job_uid = $1),
		 updated_at = NOW()
		 WHERE uid = $1`, uid)
	if err != nil {
		return fmt.Errorf("finalize processing time: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	statuses := []string{models.JobStatusSubmitted, models.JobStatusQueued, models.JobStatusRunning}
	if filter.Finished {
		statuses = []string{models.JobStatusCompleted, models.JobStatusError}
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status = ANY($1)`, statuses).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	// Normalize pagination
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ANY($1)
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, statuses, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

func (s *PostgresStore) CountJobsWithNamePrefix(ctx context.Context, prefix string) (int, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE job_name LIKE $1 || '%'`, escaped).Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs with prefix: %w", err)
	}
	return n, nil
}

// --- Job Results ---

func (s *PostgresStore) CreateJobResult(ctx context.Context, r *models.JobResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_results (id, job_uid, seed, tertiary_structure_path, secondary_structure_path,
		   secondary_svg_path, arc_diagram_path, f1, inf, processing_time_us, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.JobUID, r.Seed, r.TertiaryStructurePath, r.SecondaryStructurePath,
		r.SecondarySVGPath, r.ArcDiagramPath, r.F1, r.INF, r.ProcessingTime.Microseconds(), r.CompletedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job result: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListJobResults(ctx context.Context, jobUID uuid.UUID) ([]*models.JobResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_uid, seed, tertiary_structure_path, secondary_structure_path, secondary_svg_path,
		   arc_diagram_path, f1, inf, processing_time_us, completed_at
		 FROM job_results WHERE job_uid = $1 ORDER BY seed ASC`, jobUID)
	if err != nil {
		return nil, fmt.Errorf("list job results: %w", err)
	}
	defer rows.Close()

	results := []*models.JobResult{}
	for rows.Next() {
		var (
			r  models.JobResult
			us int64
		)
		if err := rows.Scan(&r.ID, &r.JobUID, &r.Seed, &r.TertiaryStructurePath, &r.SecondaryStructurePath,
			&r.SecondarySVGPath, &r.ArcDiagramPath, &r.F1, &r.INF, &us, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan job result: %w", err)
		}
		r.ProcessingTime = time.Duration(us) * time.Microsecond
		results = append(results, &r)
	}
	return results, rows.Err()
}

func (s *PostgresStore) CountJobResults(ctx context.Context, jobUID uuid.UUID) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM job_results WHERE job_uid = $1`, jobUID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count job results: %w", err)
	}
	return n, nil
}

// --- Example Structures ---

func (s *PostgresStore) GetExampleJob(ctx context.Context, exampleID int) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+prefixed("j", jobColumns)+`
		 FROM example_structures e JOIN jobs j ON j.uid = e.job_uid
		 WHERE e.id = $1`, exampleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get example job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) SetExampleJob(ctx context.Context, exampleID int, jobUID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO example_structures (id, job_uid) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET job_uid = EXCLUDED.job_uid`, exampleID, jobUID)
	if err != nil {
		return fmt.Errorf("set example job: %w", err)
	}
	return nil
}

// --- Retention ---

// DeleteExpiredJobs removes every job whose expiry is before now. Results
// and example links go with them through ON DELETE CASCADE, so their paths
// are collected first.
func (s *PostgresStore) DeleteExpiredJobs(ctx context.Context, now time.Time) ([]ExpiredJob, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin delete expired: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT uid, hashed_uid FROM jobs WHERE expires_at < $1 FOR UPDATE`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("select expired jobs: %w", err)
	}
	var (
		expired []ExpiredJob
		uids    []string
	)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var e ExpiredJob
		if err := rows.Scan(&e.UID, &e.HashedUID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expired job: %w", err)
		}
		index[e.UID] = len(expired)
		expired = append(expired, e)
		uids = append(uids, e.UID.String())
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select expired jobs: %w", err)
	}
	if len(expired) == 0 {
		return nil, nil
	}

	rows, err = tx.Query(ctx,
		`SELECT job_uid, tertiary_structure_path, secondary_structure_path, secondary_svg_path, arc_diagram_path
		 FROM job_results WHERE job_uid = ANY($1::uuid[])`, uids)
	if err != nil {
		return nil, fmt.Errorf("select expired results: %w", err)
	}
	for rows.Next() {
		var r models.JobResult
		if err := rows.Scan(&r.JobUID, &r.TertiaryStructurePath, &r.SecondaryStructurePath,
			&r.SecondarySVGPath, &r.ArcDiagramPath); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expired result: %w", err)
		}
		i := index[r.JobUID]
		expired[i].Paths = append(expired[i].Paths, r.Paths()...)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select expired results: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM jobs WHERE uid = ANY($1::uuid[])`, uids); err != nil {
		return nil, fmt.Errorf("delete expired jobs: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit delete expired: %w", err)
	}
	return expired, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
