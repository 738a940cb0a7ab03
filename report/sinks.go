package report

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

type logSink struct {
	logger *slog.Logger
}

// NewLogSink logs inconsistencies at error level and warnings at warn level.
func NewLogSink(logger *slog.Logger) Sink {
	return logSink{
		logger: logger,
	}
}

func (s logSink) Write(ctx context.Context, finding Finding) error {
	level := slog.LevelError

	if finding.Warning {
		level = slog.LevelWarn
	}

	s.logger.LogAttrs(ctx, level, "Consistency finding",
		slog.String("record_type", finding.RecordType.String()),
		slog.String("method", finding.Method),
		slog.String("message", finding.Message))

	return nil
}

func (s logSink) Close(context.Context) error {
	return nil
}

// FileSink writes every finding to a report file.
type FileSink struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	lock   sync.Mutex
}

// NewFileSink creates the report file, along with any missing parent directories.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating report file: %w", err)
	}

	return &FileSink{
		path:   path,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) Write(_ context.Context, finding Finding) error {
	severity := "ERROR"

	if finding.Warning {
		severity = "WARNING"
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	_, err := fmt.Fprintf(s.writer, "%s: [%s] %s: %s\n", severity, finding.RecordType, finding.Method, finding.Message)
	return err
}

func (s *FileSink) Close(context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.file == nil {
		return nil
	}

	flushErr := s.writer.Flush()
	closeErr := s.file.Close()
	s.file = nil

	if flushErr != nil {
		return fmt.Errorf("flushing report file: %w", flushErr)
	}

	return closeErr
}

type discardSink struct{}

func (discardSink) Write(context.Context, Finding) error {
	return nil
}

func (discardSink) Close(context.Context) error {
	return nil
}

// Discard is a sink that drops every finding.
var Discard Sink = discardSink{}
