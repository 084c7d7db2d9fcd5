package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bamsammich/mtpsync/internal/device"
	"github.com/bamsammich/mtpsync/internal/event"
	"github.com/bamsammich/mtpsync/internal/stats"
	"github.com/bamsammich/mtpsync/internal/transfer"
	"github.com/bamsammich/mtpsync/internal/ui"
)

type fileOp func(ctx context.Context, dev device.Device, source, destination string, opts ...transfer.Option) error

type folderOp func(ctx context.Context, dev device.Device, source, destination string, recursive bool, opts ...transfer.Option) error

func newFileCmd(g *globalOpts, use, short string, dir ui.Direction, op fileOp) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <source> <destination>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// File events are named by the destination's base name.
			dest := filepath.Dir(args[1])
			if dir == ui.Upload {
				dest = path.Dir(device.Clean(args[1]))
			}
			return runTransfer(cmd, g, dir, dest, func(ctx context.Context, dev device.Device, opts []transfer.Option) error {
				return op(ctx, dev, args[0], args[1], opts...)
			})
		},
	}
}

func newFolderCmd(g *globalOpts, use, short string, dir ui.Direction, op folderOp) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   use + " <source> <destination>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := args[1]
			if dir == ui.Upload {
				dest = device.Clean(dest)
			}
			return runTransfer(cmd, g, dir, dest, func(ctx context.Context, dev device.Device, opts []transfer.Option) error {
				if !cmd.Flags().Changed("recursive") && g.cfg.Defaults.Recursive != nil {
					recursive = *g.cfg.Defaults.Recursive
				}
				return op(ctx, dev, args[0], args[1], recursive, opts...)
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "copy subfolders (--recursive=false copies direct files only)")
	return cmd
}

// runTransfer sets up logging, the device and progress display around fn.
func runTransfer(
	cmd *cobra.Command,
	g *globalOpts,
	dir ui.Direction,
	dest string,
	fn func(ctx context.Context, dev device.Device, opts []transfer.Option) error,
) error {
	if err := g.load(cmd); err != nil {
		return err
	}
	logger, closeLog, err := g.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck // best-effort close of log file
	ctx, cancel := context.WithCancel(logger.WithContext(cmd.Context()))
	defer cancel()

	opts, err := g.transferOptions()
	if err != nil {
		return err
	}
	dev, err := openDevice(ctx, g)
	if err != nil {
		logger.Error().Err(err).Msg("connect failed")
		return &exitError{code: 2}
	}
	defer dev.Close()

	if g.dryRun {
		logger.Info().Msg("dry run mode")
	}

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)
	opts = append(opts, transfer.WithEvents(events), transfer.WithStats(collector))

	// With --log, tee events through the logger before the presenter sees them.
	presenterEvents := (<-chan event.Event)(events)
	if g.logFile != "" {
		teed := make(chan event.Event, 256)
		go func() {
			for ev := range events {
				logEvent(&logger, ev)
				teed <- ev
			}
			close(teed)
		}()
		presenterEvents = teed
	}

	isTTY := false
	if f, ok := cmd.ErrOrStderr().(*os.File); ok {
		isTTY = ui.IsTTY(f.Fd())
	}
	if g.tui && !isTTY {
		logger.Warn().Msg("--tui requires a terminal, falling back to inline output")
	}
	presenter := ui.NewPresenter(ui.Config{
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Stats:     collector,
		Cancel:    cancel,
		Dest:      dest,
		Direction: dir,
		IsTTY:     isTTY && !g.quiet,
		TUI:       g.tui,
		Quiet:     g.quiet,
		Verbose:   g.verbose,
	})

	var presenterErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	err = fn(ctx, dev, opts)
	close(events)
	wg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "presenter: %v\n", presenterErr)
	}

	if summary := presenter.Summary(); summary != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), summary)
	}

	if err != nil {
		logger.Error().Err(err).Msg("transfer failed")
		if collector.Snapshot().FilesCopied > 0 {
			return &exitError{code: 1} // partial failure
		}
		return &exitError{code: 2}
	}
	return nil
}

func logEvent(logger *zerolog.Logger, ev event.Event) {
	e := logger.Info().
		Time("at", ev.Timestamp).
		Str("type", ev.Type.String()).
		Str("path", ev.Path).
		Int64("size", ev.Size)
	if ev.Error != nil {
		e = e.AnErr("event_error", ev.Error)
	}
	e.Msg("mtpsync.event")
}

func newLsCmd(g *globalOpts) *cobra.Command {
	var (
		all     bool
		pattern string
	)
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a device folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.load(cmd); err != nil {
				return err
			}
			logger, closeLog, err := g.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog() //nolint:errcheck // best-effort close of log file
			ctx := logger.WithContext(cmd.Context())

			p := "/"
			if len(args) == 1 {
				p = args[0]
			}
			dev, err := openDevice(ctx, g)
			if err != nil {
				return err
			}
			defer dev.Close()

			opt := device.TopDirectoryOnly
			if all {
				opt = device.AllDirectories
			}
			return list(ctx, cmd.OutOrStdout(), dev, p, pattern, opt)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "list subfolders recursively")
	cmd.Flags().StringVar(&pattern, "pattern", "*", "only list names matching the glob PATTERN")
	return cmd
}

func list(ctx context.Context, w io.Writer, dev device.Device, p, pattern string, opt device.SearchOption) error {
	dir, err := dev.GetDirectoryInfo(ctx, p)
	if err != nil {
		return err
	}
	var rows [][]string
	err = dir.EnumerateFileSystemInfos(ctx, pattern, opt, func(e device.Entry) error {
		size := "-"
		if !e.IsContainer() {
			size = stats.FormatBytes(e.Size)
		}
		rows = append(rows, []string{e.Kind.String(), size, e.ModTime.Format("2006-01-02 15:04"), e.FullName})
		return nil
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	cell := lipgloss.NewStyle().PaddingRight(2)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers("KIND", "SIZE", "MODIFIED", "PATH").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := cell
			if row == table.HeaderRow {
				s = s.Bold(true)
			}
			if col == 1 {
				s = s.Align(lipgloss.Right)
			}
			return s
		})
	_, err = fmt.Fprintln(w, t.Render())
	return err
}
