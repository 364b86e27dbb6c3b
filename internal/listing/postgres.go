package listing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const jobsQuery = `SELECT id, title, description, COALESCE(match_score, 0) FROM jobs ORDER BY id`

// PostgresSource reads postings from the relational job-listing database.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource connects to the listing database at url.
func NewPostgresSource(ctx context.Context, url string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connecting to listing database: %w", err)
	}
	return &PostgresSource{pool: pool}, nil
}

func (p *PostgresSource) Jobs(ctx context.Context) ([]Job, error) {
	rows, err := p.pool.Query(ctx, jobsQuery)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Title, &job.Description, &job.MatchScore); err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating job rows: %w", err)
	}

	return jobs, nil
}

// Close releases the connection pool.
func (p *PostgresSource) Close() {
	p.pool.Close()
}
