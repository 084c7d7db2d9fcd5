package ui

import (
	"fmt"
	"time"

	"github.com/bamsammich/mtpsync/internal/event"
	"github.com/bamsammich/mtpsync/internal/stats"
)

// plainPresenter prints one line per finished file. With a nonzero tick it
// also rewrites a progress line on the error writer.
type plainPresenter struct {
	cfg  Config
	tick time.Duration
	live bool // a progress line is on screen
}

func (p *plainPresenter) Run(events <-chan event.Event) error {
	var tickC <-chan time.Time
	if p.tick > 0 {
		ticker := time.NewTicker(p.tick)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearProgress()
				return nil
			}
			p.handleEvent(ev)
		case <-tickC:
			p.cfg.Stats.Tick()
			p.printProgress()
		}
	}
}

func (p *plainPresenter) handleEvent(ev event.Event) {
	w, name := p.cfg.Writer, p.cfg.destPath(ev.Path)
	switch ev.Type {
	case event.FileCompleted:
		p.clearProgress()
		fmt.Fprintf(w, "%s %s  %s\n", p.cfg.Direction.arrow(), name, stats.FormatBytes(ev.Size))
	case event.FileFailed:
		p.clearProgress()
		fmt.Fprintf(w, "✗ %s: %v\n", name, ev.Error)
	case event.FileSkipped:
		p.clearProgress()
		fmt.Fprintf(w, "- %s (skipped)\n", name)
	case event.VerifyFailed:
		p.clearProgress()
		fmt.Fprintf(w, "✗ %s: checksum mismatch\n", name)
	case event.DirCreated:
		if p.cfg.Verbose {
			fmt.Fprintf(w, "+ %s/\n", name)
		}
	case event.VerifyOK:
		if p.cfg.Verbose {
			fmt.Fprintf(w, "✓ %s verified\n", name)
		}
	}
}

func (p *plainPresenter) printProgress() {
	fmt.Fprintf(p.cfg.ErrWriter, "\r\033[K%s", progressLine(p.cfg.Stats.Snapshot(), p.cfg.Stats.RollingSpeed(5)))
	p.live = true
}

func (p *plainPresenter) clearProgress() {
	if p.live {
		fmt.Fprint(p.cfg.ErrWriter, "\r\033[K")
		p.live = false
	}
}

func (p *plainPresenter) Summary() string {
	return SummaryLine(p.cfg.Stats.Snapshot())
}
