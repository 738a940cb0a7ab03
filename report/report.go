// Package report defines the inconsistency events raised by the consistency checker and the sinks and summary
// they are collected into.
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/util"
)

// Inconsistency is a single finding: a kind raised against a record of the given type. Related holds the
// records the subject was found to be inconsistent with.
type Inconsistency struct {
	Type    record.Type
	Kind    Kind
	Subject fmt.Stringer
	Related []fmt.Stringer
}

func New(recordType record.Type, kind Kind, subject fmt.Stringer, related ...fmt.Stringer) Inconsistency {
	return Inconsistency{
		Type:    recordType,
		Kind:    kind,
		Subject: subject,
		Related: related,
	}
}

func (s Inconsistency) IsWarning() bool {
	return s.Kind.IsWarning()
}

func (s Inconsistency) Message() string {
	builder := strings.Builder{}
	builder.WriteString(s.Kind.Message())

	if s.Subject != nil {
		builder.WriteString("\n\t")
		builder.WriteString(s.Subject.String())
	}

	for _, related := range s.Related {
		if related != nil {
			builder.WriteString("\n\tInconsistent with: ")
			builder.WriteString(related.String())
		}
	}

	return builder.String()
}

// Finding is the flattened form of an inconsistency handed to sinks.
type Finding struct {
	RecordType record.Type
	Method     string
	Message    string
	Warning    bool
}

func (s Inconsistency) Finding() Finding {
	return Finding{
		RecordType: s.Type,
		Method:     s.Kind.Method(),
		Message:    s.Message(),
		Warning:    s.IsWarning(),
	}
}

// Reporter receives inconsistencies. Implementations must accept concurrent calls.
type Reporter interface {
	Report(inconsistency Inconsistency)
}

type ReporterFunc func(inconsistency Inconsistency)

func (s ReporterFunc) Report(inconsistency Inconsistency) {
	s(inconsistency)
}

// Nop drops every inconsistency.
var Nop Reporter = ReporterFunc(func(Inconsistency) {})

// Sink receives findings. Implementations must accept concurrent calls.
type Sink interface {
	Write(ctx context.Context, finding Finding) error
	Close(ctx context.Context) error
}

// Collector is the Reporter of a run. It counts every inconsistency in its summary and fans findings out to
// sinks. Sink failures do not stop collection; they are gathered and returned by Err and Close.
type Collector struct {
	ctx     context.Context
	summary *Summary
	sinks   []Sink
	errs    util.ErrorCollector
}

func NewCollector(ctx context.Context, sinks ...Sink) *Collector {
	return &Collector{
		ctx:     ctx,
		summary: NewSummary(),
		sinks:   sinks,
		errs:    util.NewErrorCollector(),
	}
}

func (s *Collector) Report(inconsistency Inconsistency) {
	s.summary.Add(inconsistency)

	if len(s.sinks) == 0 {
		return
	}

	finding := inconsistency.Finding()

	for _, sink := range s.sinks {
		if err := sink.Write(s.ctx, finding); err != nil {
			s.errs.Add(err)
		}
	}
}

func (s *Collector) Summary() *Summary {
	return s.summary
}

func (s *Collector) Err() error {
	return s.errs.Combined()
}

// Close closes every sink and returns all sink failures seen during the run.
func (s *Collector) Close() error {
	for _, sink := range s.sinks {
		s.errs.Add(sink.Close(s.ctx))
	}

	return s.errs.Combined()
}
