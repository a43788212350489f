// Package report collects profiling run outcomes: timeouts, grouped remote
// error samples, and recovery counters. Collections are bounded so a
// pathological error volume cannot grow memory without limit.
package report

import "sync"

const (
	// DefaultTimeoutCapacity bounds the per-run timeout list.
	DefaultTimeoutCapacity = 100
	// DefaultSampleCapacity bounds the sample list kept per error class.
	DefaultSampleCapacity = 10
)

// lossyList is a capacity-limited sample collection. Appends past capacity
// are dropped and counted instead of stored. Callers hold the owning
// report's lock.
type lossyList struct {
	capacity int
	items    []string
	dropped  int
}

func newLossyList(capacity int) *lossyList {
	return &lossyList{capacity: capacity}
}

func (l *lossyList) append(item string) {
	if len(l.items) >= l.capacity {
		l.dropped++
		return
	}
	l.items = append(l.items, item)
}

// ProfilingReport is the sink profiling workers record outcomes into. Safe
// for concurrent use by parallel table-profiling workers.
type ProfilingReport struct {
	mu sync.Mutex

	timeouts       *lossyList
	errors         map[string]*lossyList
	sampleCapacity int

	tablesProfiled           int64
	unsupportedColumnRetries int64
	numericParseFailures     int64
}

// New creates a report with the default collection bounds.
func New() *ProfilingReport {
	return NewWithCapacity(DefaultTimeoutCapacity, DefaultSampleCapacity)
}

// NewWithCapacity creates a report with explicit bounds for the timeout list
// and the per-class sample lists.
func NewWithCapacity(timeoutCapacity, sampleCapacity int) *ProfilingReport {
	if timeoutCapacity <= 0 {
		timeoutCapacity = DefaultTimeoutCapacity
	}
	if sampleCapacity <= 0 {
		sampleCapacity = DefaultSampleCapacity
	}
	return &ProfilingReport{
		timeouts:       newLossyList(timeoutCapacity),
		errors:         make(map[string]*lossyList),
		sampleCapacity: sampleCapacity,
	}
}

// RecordProfiled counts one successfully produced profile.
func (r *ProfilingReport) RecordProfiled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tablesProfiled++
}

// RecordTimeout records that profiling ref exhausted its wait budget.
func (r *ProfilingReport) RecordTimeout(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeouts.append(ref)
}

// RecordError records a remote failure sample under its grouping key.
func (r *ProfilingReport) RecordError(groupKey, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.errors[groupKey]
	if !ok {
		list = newLossyList(r.sampleCapacity)
		r.errors[groupKey] = list
	}
	list.append(message)
}

// IncUnsupportedColumnRetry counts one column-narrowing retry triggered by
// an unsupported-column-type failure.
func (r *ProfilingReport) IncUnsupportedColumnRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsupportedColumnRetries++
}

// IncNumericParseFailure counts one statistic value that was present but not
// integer-parseable.
func (r *ProfilingReport) IncNumericParseFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.numericParseFailures++
}

// ErrorClass is the snapshot of one error group.
type ErrorClass struct {
	Samples []string
	Dropped int
	Total   int
}

// Snapshot is a point-in-time copy of the report, safe to read without
// further locking.
type Snapshot struct {
	TablesProfiled           int64
	Timeouts                 []string
	TimeoutsDropped          int
	Errors                   map[string]ErrorClass
	UnsupportedColumnRetries int64
	NumericParseFailures     int64
}

// ErrorCount returns the total number of recorded failures across classes.
func (s Snapshot) ErrorCount() int {
	total := 0
	for _, class := range s.Errors {
		total += class.Total
	}
	return total
}

// Snapshot copies the current report state.
func (r *ProfilingReport) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		TablesProfiled:           r.tablesProfiled,
		Timeouts:                 append([]string(nil), r.timeouts.items...),
		TimeoutsDropped:          r.timeouts.dropped,
		Errors:                   make(map[string]ErrorClass, len(r.errors)),
		UnsupportedColumnRetries: r.unsupportedColumnRetries,
		NumericParseFailures:     r.numericParseFailures,
	}
	for key, list := range r.errors {
		snap.Errors[key] = ErrorClass{
			Samples: append([]string(nil), list.items...),
			Dropped: list.dropped,
			Total:   len(list.items) + list.dropped,
		}
	}
	return snap
}
