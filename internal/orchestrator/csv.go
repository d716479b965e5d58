package orchestrator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// resultColumns is the stable row schema consumed by downstream reporting.
var resultColumns = []string{
	"timestamp", "mode", "server_pool", "operation", "volume",
	"client_pool", "avg_time_s", "throughput_Bps", "success", "fail",
}

// ResultWriter appends scenario rows as CSV. Rows are flushed as they are
// written so a run killed mid-matrix keeps everything completed so far.
type ResultWriter struct {
	w *csv.Writer
}

// NewResultWriter writes the header row and returns the writer.
func NewResultWriter(out io.Writer) (*ResultWriter, error) {
	w := csv.NewWriter(out)
	if err := w.Write(resultColumns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	return &ResultWriter{w: w}, w.Error()
}

// Write appends one result row.
func (rw *ResultWriter) Write(r Result) error {
	row := []string{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Mode,
		strconv.Itoa(r.ServerPool),
		string(r.Operation),
		strconv.FormatInt(r.VolumeBytes, 10),
		strconv.Itoa(r.ClientPool),
		strconv.FormatFloat(r.AvgTime, 'f', 6, 64),
		strconv.FormatFloat(r.Throughput, 'f', 2, 64),
		strconv.Itoa(r.Success),
		strconv.Itoa(r.Fail),
	}
	if err := rw.w.Write(row); err != nil {
		return err
	}
	rw.w.Flush()
	return rw.w.Error()
}
