package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DefaultFindingsTable     = "consistency_findings"
	defaultPostgresBatchSize = 1024

	assertFindingsTableSQL = `create table if not exists %[1]s (
								id bigint generated always as identity not null,
								run_id uuid not null,
								record_type text not null,
								method text not null,
								message text not null,
								warning boolean not null,
								reported_at timestamp with time zone not null,

								primary key (id)
							);

							create index if not exists %[1]s_run_id_index on %[1]s using btree (run_id);`
)

var findingColumns = []string{
	"run_id",
	"record_type",
	"method",
	"message",
	"warning",
	"reported_at",
}

// PostgresConn is the subset of a pgx connection or pool the Postgres sink needs.
type PostgresConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type PostgresOptions struct {
	Table     string
	BatchSize int
}

type bufferedFinding struct {
	finding    Finding
	reportedAt time.Time
}

// PostgresSink copies findings into a Postgres table in batches. Every finding of a run shares the run id.
type PostgresSink struct {
	conn      PostgresConn
	pool      *pgxpool.Pool
	runID     uuid.UUID
	table     string
	batchSize int
	buffer    []bufferedFinding
	lock      sync.Mutex
}

// NewPostgresSink asserts the findings table and returns a sink writing to it through conn.
func NewPostgresSink(ctx context.Context, conn PostgresConn, runID uuid.UUID, opts PostgresOptions) (*PostgresSink, error) {
	sink := &PostgresSink{
		conn:      conn,
		runID:     runID,
		table:     opts.Table,
		batchSize: opts.BatchSize,
	}

	if sink.table == "" {
		sink.table = DefaultFindingsTable
	}

	if sink.batchSize <= 0 {
		sink.batchSize = defaultPostgresBatchSize
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf(assertFindingsTableSQL, pgx.Identifier{sink.table}.Sanitize())); err != nil {
		return nil, fmt.Errorf("asserting findings table %s: %w", sink.table, err)
	}

	return sink, nil
}

// OpenPostgresSink connects a pool to the given connection string. The pool is closed with the sink.
func OpenPostgresSink(ctx context.Context, connectionString string, runID uuid.UUID, opts PostgresOptions) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("connecting findings pool: %w", err)
	}

	sink, err := NewPostgresSink(ctx, pool, runID, opts)
	if err != nil {
		pool.Close()
		return nil, err
	}

	sink.pool = pool
	return sink, nil
}

func (s *PostgresSink) RunID() uuid.UUID {
	return s.runID
}

func (s *PostgresSink) Write(ctx context.Context, finding Finding) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.buffer = append(s.buffer, bufferedFinding{
		finding:    finding,
		reportedAt: time.Now(),
	})

	if len(s.buffer) >= s.batchSize {
		return s.flush(ctx)
	}

	return nil
}

func (s *PostgresSink) flush(ctx context.Context) error {
	if len(s.buffer) == 0 {
		return nil
	}

	var (
		batch    = s.buffer
		iterator = func(idx int) ([]any, error) {
			next := batch[idx]

			return []any{
				s.runID,
				next.finding.RecordType.String(),
				next.finding.Method,
				next.finding.Message,
				next.finding.Warning,
				next.reportedAt,
			}, nil
		}
	)

	s.buffer = nil

	if _, err := s.conn.CopyFrom(ctx, pgx.Identifier{s.table}, findingColumns, pgx.CopyFromSlice(len(batch), iterator)); err != nil {
		return fmt.Errorf("copying %d findings: %w", len(batch), err)
	}

	return nil
}

// Flush copies any buffered findings.
func (s *PostgresSink) Flush(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.flush(ctx)
}

func (s *PostgresSink) Close(ctx context.Context) error {
	err := s.Flush(ctx)

	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}

	return err
}
