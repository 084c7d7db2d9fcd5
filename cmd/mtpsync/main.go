package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/bamsammich/mtpsync/internal/transfer"
	"github.com/bamsammich/mtpsync/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer transfer.CleanupTempFiles()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalOpts{}
	rootCmd := &cobra.Command{
		Use:           "mtpsync",
		Short:         "Copy files and folders to and from portable media devices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	g.register(rootCmd)

	rootCmd.AddCommand(
		newFileCmd(g, "download", "Copy a file from the device", ui.Download, transfer.DownloadFile),
		newFileCmd(g, "upload", "Copy a local file to the device", ui.Upload, transfer.UploadFile),
		newFolderCmd(g, "download-folder", "Copy a device folder to a local directory", ui.Download, transfer.DownloadFolder),
		newFolderCmd(g, "upload-folder", "Copy a local directory to a device folder", ui.Upload, transfer.UploadFolder),
		newLsCmd(g),
		newVersionCmd(),
		newDocsCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mtpsync %s\n", version)
		},
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
