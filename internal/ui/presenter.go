package ui

import (
	"io"
	"path"
	"path/filepath"
	"time"

	"github.com/bamsammich/mtpsync/internal/event"
	"github.com/bamsammich/mtpsync/internal/stats"
)

// Presenter consumes transfer events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan event.Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Direction tells a presenter which side of the transfer event paths
// land on.
type Direction int

const (
	Download Direction = iota // device to local filesystem
	Upload                    // local filesystem to device
)

func (d Direction) arrow() string {
	if d == Upload {
		return "↑"
	}
	return "↓"
}

// Config configures a Presenter.
type Config struct {
	Writer    io.Writer
	ErrWriter io.Writer
	Stats     *stats.Collector
	Cancel    func() // called when the user quits the interactive view
	Dest      string // destination root; event paths are shown below it
	Direction Direction
	IsTTY     bool // ErrWriter is a terminal
	TUI       bool // interactive view, only honored when IsTTY
	Quiet     bool
	Verbose   bool // also report directories and verification
}

// destPath returns the destination path of an event path, in device
// syntax for uploads and local syntax for downloads.
func (c Config) destPath(rel string) string {
	if c.Dest == "" || rel == "" {
		return rel
	}
	if c.Direction == Upload {
		return path.Join(c.Dest, rel)
	}
	return filepath.Join(c.Dest, filepath.FromSlash(rel))
}

// NewPresenter creates the presenter selected by cfg.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	switch {
	case cfg.Quiet:
		return quietPresenter{}
	case cfg.TUI && cfg.IsTTY:
		return newTUIPresenter(cfg)
	}
	p := &plainPresenter{cfg: cfg}
	if cfg.IsTTY {
		p.tick = time.Second
	}
	return p
}
