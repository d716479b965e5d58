package orchestrator

import (
	"fmt"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
)

// Progress receives per-scenario completion events during a matrix run.
type Progress interface {
	Start(total int)
	Step(Result)
	Finish()
}

// BarProgress renders a terminal progress bar with a one-line colored
// summary per completed scenario.
type BarProgress struct {
	bar *pb.ProgressBar
}

func NewBarProgress() *BarProgress {
	return &BarProgress{}
}

func (p *BarProgress) Start(total int) {
	p.bar = pb.New(total)
	p.bar.SetTemplateString(`{{counters . }} {{bar . }} {{percent . }}`)
	p.bar.Start()
}

func (p *BarProgress) Step(r Result) {
	line := fmt.Sprintf("%-45s avg=%.3fs tput=%s ok=%d fail=%d",
		r.Scenario, r.AvgTime, formatThroughput(r.Throughput), r.Success, r.Fail)
	if r.FailureKind != "" {
		line += fmt.Sprintf(" (%s)", r.FailureKind)
	}
	if r.Fail > 0 {
		color.Yellow(line)
	} else {
		color.Green(line)
	}
	p.bar.Increment()
}

func (p *BarProgress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}

func formatThroughput(bps float64) string {
	switch {
	case bps >= 1<<30:
		return fmt.Sprintf("%.2fGiB/s", bps/(1<<30))
	case bps >= 1<<20:
		return fmt.Sprintf("%.2fMiB/s", bps/(1<<20))
	case bps >= 1<<10:
		return fmt.Sprintf("%.2fKiB/s", bps/(1<<10))
	default:
		return fmt.Sprintf("%.0fB/s", bps)
	}
}
