package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gitlab.com/tozd/go/errors"

	"github.com/bamsammich/mtpsync/internal/config"
	"github.com/bamsammich/mtpsync/internal/transfer"
	"github.com/bamsammich/mtpsync/internal/ui"
)

// globalOpts holds the persistent flags shared by every command.
type globalOpts struct {
	device         string
	bwLimit        string
	logFile        string
	sshKeyFile     string
	sshUser        string
	knownHosts     string
	excludes       []string
	sshPort        int
	verify         bool
	dryRun         bool
	verbose        bool
	quiet          bool
	tui            bool
	storageObjects bool

	cfg config.Config
}

func (g *globalOpts) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&g.device, "device", "d", "", "device location (mount path, mount:///path or sftp://user@host:port/root)")
	f.BoolVar(&g.verify, "verify", false, "verify checksums after copy (BLAKE3)")
	f.StringVar(&g.bwLimit, "bwlimit", "", "bandwidth limit (e.g. 10M, 512K)")
	f.BoolVarP(&g.dryRun, "dry-run", "n", false, "show what would be copied without writing")
	f.StringArrayVar(&g.excludes, "exclude", nil, "exclude paths matching PATTERN (repeatable)")
	f.BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")
	f.BoolVarP(&g.quiet, "quiet", "q", false, "suppress all output except errors")
	f.BoolVar(&g.tui, "tui", false, "interactive progress view (needs a terminal)")
	f.StringVar(&g.logFile, "log", "", "write structured JSON log to FILE")
	f.BoolVar(&g.storageObjects, "storage-objects", false, "report top-level device folders as storage objects")
	f.StringVar(&g.sshKeyFile, "ssh-key", "", "SSH private key for sftp:// devices")
	f.IntVar(&g.sshPort, "ssh-port", 22, "SSH port for sftp:// devices")
	f.StringVar(&g.sshUser, "ssh-user", "", "SSH user for sftp:// devices without one")
	f.StringVar(&g.knownHosts, "known-hosts", "", "known_hosts file (default ~/.ssh/known_hosts)")
}

// load reads the config file and applies its defaults to flags that were
// not set on the command line.
func (g *globalOpts) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Errorf("load config: %w", err)
	}
	g.cfg = cfg
	applyConfigDefaults(cmd.Flags(), cfg, g)
	return nil
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(flags *pflag.FlagSet, cfg config.Config, g *globalOpts) {
	d, s := cfg.Defaults, cfg.SFTP
	if !flags.Changed("verify") && d.Verify != nil {
		g.verify = *d.Verify
	}
	if !flags.Changed("bwlimit") && d.BWLimit != nil {
		g.bwLimit = *d.BWLimit
	}
	if !flags.Changed("tui") && d.TUI != nil {
		g.tui = *d.TUI
	}
	if !flags.Changed("storage-objects") && d.StorageObjects != nil {
		g.storageObjects = *d.StorageObjects
	}
	if !flags.Changed("device") && d.Device != nil {
		g.device = *d.Device
	}
	if !flags.Changed("ssh-user") && s.User != nil {
		g.sshUser = *s.User
	}
	if !flags.Changed("ssh-port") && s.Port != nil {
		g.sshPort = *s.Port
	}
	if !flags.Changed("ssh-key") && s.KeyFile != nil {
		g.sshKeyFile = *s.KeyFile
	}
	if !flags.Changed("known-hosts") && s.KnownHosts != nil {
		g.knownHosts = *s.KnownHosts
	}
}

// transferOptions builds the transfer options selected by the flags.
func (g *globalOpts) transferOptions() ([]transfer.Option, error) {
	opts := []transfer.Option{
		transfer.WithVerify(g.verify),
		transfer.WithDryRun(g.dryRun),
		transfer.WithFilter(g.excludes...),
	}
	if g.bwLimit != "" {
		n, err := config.ParseSize(g.bwLimit)
		if err != nil {
			return nil, errors.Errorf("--bwlimit: %w", err)
		}
		opts = append(opts, transfer.WithBWLimit(n))
	}
	return opts, nil
}

// newLogger builds the CLI logger: a console writer on stderr at warn
// (debug with -v, error with -q), plus an optional JSON file at debug.
// The returned closer closes the log file.
func (g *globalOpts) newLogger(stderr io.Writer) (zerolog.Logger, func() error, error) {
	level := zerolog.WarnLevel
	switch {
	case g.verbose:
		level = zerolog.DebugLevel
	case g.quiet:
		level = zerolog.ErrorLevel
	}

	noColor := true
	if f, ok := stderr.(*os.File); ok {
		noColor = !ui.IsTTY(f.Fd())
	}
	console := zerolog.ConsoleWriter{Out: stderr, NoColor: noColor, TimeFormat: time.TimeOnly}

	if g.logFile == "" {
		return zerolog.New(console).Level(level).With().Timestamp().Logger(), func() error { return nil }, nil
	}

	lf, err := os.OpenFile(g.logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, errors.Errorf("open log file: %w", err)
	}
	w := zerolog.MultiLevelWriter(
		&zerolog.FilteredLevelWriter{Writer: zerolog.LevelWriterAdapter{Writer: console}, Level: level},
		lf,
	)
	return zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger(), lf.Close, nil
}
