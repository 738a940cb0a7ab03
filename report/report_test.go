package report_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
	"github.com/stretchr/testify/require"
)

func TestKinds_Table(t *testing.T) {
	methods := map[string]report.Kind{}

	for _, kind := range report.Kinds() {
		require.NotEmpty(t, kind.Method(), "kind %d has no method", kind)
		require.NotEmpty(t, kind.Message(), "kind %s has no message", kind)

		previous, seen := methods[kind.Method()]
		require.False(t, seen, "kinds %d and %d share method %s", previous, kind, kind.Method())

		methods[kind.Method()] = kind
	}

	require.True(t, report.EmptyBlock.IsWarning())
	require.True(t, report.RecordNotFullReferencesNext.IsWarning())
	require.True(t, report.EmptyName.IsWarning())
	require.False(t, report.LabelsOutOfOrder.IsWarning())
	require.False(t, report.KindNone.IsValid())
}

func TestSummary_Counts(t *testing.T) {
	var (
		summary = report.NewSummary()
		node    = record.NewNode(3)
		waits   sync.WaitGroup
	)

	for range 10 {
		waits.Add(1)

		go func() {
			defer waits.Done()

			summary.Add(report.New(record.TypeNode, report.LabelsOutOfOrder, node))
			summary.Add(report.New(record.TypeStringProperty, report.EmptyBlock, record.NewDynamic(1)))
		}()
	}

	waits.Wait()

	require.Equal(t, int64(10), summary.TotalInconsistencyCount())
	require.Equal(t, int64(10), summary.TotalWarningCount())
	require.False(t, summary.IsConsistent())
	require.Equal(t, int64(10), summary.Count(record.TypeNode, report.LabelsOutOfOrder))
	require.Equal(t, int64(10), summary.CountOf(report.EmptyBlock))
	require.Equal(t, int64(0), summary.TypeCount(record.TypeStringProperty))

	snapshot := summary.Snapshot()
	require.Len(t, snapshot.RecordTypes, 2)
	require.Equal(t, "NODE", snapshot.RecordTypes[0].RecordType)
	require.Equal(t, []report.MethodCount{{Method: "labelsOutOfOrder", Count: 10}}, snapshot.RecordTypes[0].Methods)

	require.Contains(t, summary.String(), "Inconsistencies: 10, warnings: 10")
}

func TestSummary_WarningsAreConsistent(t *testing.T) {
	summary := report.NewSummary()
	summary.Add(report.New(record.TypeLabelName, report.EmptyName, record.NewToken(0)))

	require.True(t, summary.IsConsistent())
	require.Equal(t, int64(1), summary.TotalWarningCount())
}

func TestInconsistency_Message(t *testing.T) {
	var (
		relationship  = record.NewRelationship(1)
		node          = record.NewNode(0)
		inconsistency = report.New(record.TypeRelationship, report.SourceNodeNotInUse, relationship, node)
	)

	finding := inconsistency.Finding()
	require.Equal(t, "sourceNodeNotInUse", finding.Method)
	require.Equal(t, record.TypeRelationship, finding.RecordType)
	require.False(t, finding.Warning)
	require.Contains(t, finding.Message, relationship.String())
	require.Contains(t, finding.Message, "Inconsistent with: "+node.String())
}

type failingSink struct{}

func (failingSink) Write(context.Context, report.Finding) error {
	return errors.New("sink failure")
}

func (failingSink) Close(context.Context) error {
	return nil
}

func TestCollector_FileAndLogSinks(t *testing.T) {
	var (
		ctx        = context.Background()
		logOutput  = &bytes.Buffer{}
		reportPath = filepath.Join(t.TempDir(), "reports", "inconsistencies.report")
	)

	fileSink, err := report.NewFileSink(reportPath)
	require.NoError(t, err)

	collector := report.NewCollector(ctx, fileSink, report.NewLogSink(slog.New(slog.NewJSONHandler(logOutput, nil))), failingSink{}, report.Discard)
	collector.Report(report.New(record.TypeNode, report.IDIsFreed, record.NewNode(5)))
	collector.Report(report.New(record.TypeArrayProperty, report.EmptyBlock, record.NewDynamic(2)))

	require.Error(t, collector.Err())
	require.Error(t, collector.Close())

	content, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.True(t, strings.HasPrefix(lines[0], "ERROR: [NODE] idIsFreed:"))
	require.Contains(t, string(content), "WARNING: [ARRAY_PROPERTY] emptyBlock:")

	require.Contains(t, logOutput.String(), `"method":"idIsFreed"`)
	require.Contains(t, logOutput.String(), `"level":"WARN"`)
	require.Equal(t, int64(1), collector.Summary().TotalInconsistencyCount())
}

type copiedRows struct {
	table   pgx.Identifier
	columns []string
	rows    [][]any
}

type fakePostgres struct {
	statements []string
	copies     []copiedRows
}

func (s *fakePostgres) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	s.statements = append(s.statements, sql)
	return pgconn.CommandTag{}, nil
}

func (s *fakePostgres) CopyFrom(_ context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	copied := copiedRows{
		table:   tableName,
		columns: columnNames,
	}

	for rowSrc.Next() {
		values, err := rowSrc.Values()
		if err != nil {
			return 0, err
		}

		copied.rows = append(copied.rows, values)
	}

	s.copies = append(s.copies, copied)
	return int64(len(copied.rows)), nil
}

func TestPostgresSink_Batches(t *testing.T) {
	var (
		ctx   = context.Background()
		conn  = &fakePostgres{}
		runID = uuid.New()
	)

	sink, err := report.NewPostgresSink(ctx, conn, runID, report.PostgresOptions{BatchSize: 2})
	require.NoError(t, err)
	require.Len(t, conn.statements, 1)
	require.Contains(t, conn.statements[0], `create table if not exists "consistency_findings"`)

	for _, kind := range []report.Kind{report.LabelNotInUse, report.IllegalOwner, report.EmptyName} {
		require.NoError(t, sink.Write(ctx, report.New(record.TypeNode, kind, record.NewNode(1)).Finding()))
	}

	require.Len(t, conn.copies, 1)
	require.Len(t, conn.copies[0].rows, 2)

	require.NoError(t, sink.Close(ctx))
	require.Len(t, conn.copies, 2)

	last := conn.copies[1]
	require.Equal(t, pgx.Identifier{report.DefaultFindingsTable}, last.table)
	require.Equal(t, runID, last.rows[0][0])
	require.Equal(t, "NODE", last.rows[0][1])
	require.Equal(t, "emptyName", last.rows[0][2])
	require.Equal(t, true, last.rows[0][4])
}
