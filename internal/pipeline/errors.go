package pipeline

import "errors"

var (
	// ErrNullSections is returned when an adapter yields no raw sections.
	ErrNullSections = errors.New("null raw sections")
	// ErrNullChartData is returned when shaping yields no realtime chart.
	ErrNullChartData = errors.New("null realtime chart data")
	// ErrItemTimeout is returned when one protocol does not finish in time.
	ErrItemTimeout = errors.New("protocol processing timed out")
	// ErrBatchTimeout is returned when a whole run does not finish in time.
	ErrBatchTimeout = errors.New("batch run timed out")
	// ErrRunInProgress rejects a run started while another is active.
	ErrRunInProgress = errors.New("batch run already in progress")
)
