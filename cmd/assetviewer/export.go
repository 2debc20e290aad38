package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/chalkpe/assetviewer"
)

type exportFlags struct {
	out     string
	workers int
	verify  bool
	archive string
	prefix  string
	level   int
}

func newExportCmd(a *app) *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export [version]",
		Short: "Copy a version's assets out under their logical names",
		Long: `Copy every object named by a version manifest to <out>/<logical name>.

Without a version argument, the version is chosen interactively when stdin is
a terminal, and the latest version is used otherwise. Existing files are
replaced. Entries that cannot be copied are listed at the end and make the
command exit with status 1; an unreadable manifest exits with status 2.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExport(cmd, args, &f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.out, "out", "o", "", "Destination directory (default <output>/<version>)")
	flags.IntVarP(&f.workers, "workers", "j", 0, "Concurrent copies; 0 uses all CPUs, negative copies serially")
	flags.BoolVar(&f.verify, "verify", false, "Check copied size and hash against the manifest")
	flags.StringVar(&f.archive, "archive", "", "Write a .tar.zst archive to this file instead of a directory")
	flags.IntVar(&f.level, "level", 0, "zstd compression level for --archive (1-22); 0 uses the encoder default")
	flags.StringVar(&f.prefix, "prefix", "", "Only export logical names under this directory")
	return cmd
}

func (a *app) runExport(cmd *cobra.Command, args []string, f *exportFlags) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	version, err := a.chooseVersion(cmd, store, args)
	if err != nil {
		return err
	}

	workers := a.cfg.Workers
	if cmd.Flags().Changed("workers") {
		workers = f.workers
	}
	verify := a.cfg.Verify
	if cmd.Flags().Changed("verify") {
		verify = f.verify
	}
	dest := f.out
	if dest == "" {
		dest = filepath.Join(a.cfg.Output, version)
	}

	opts := []assetviewer.ExportOption{
		assetviewer.WithLogger(a.logger),
		assetviewer.WithWorkers(workers),
		assetviewer.WithVerify(verify),
		assetviewer.WithPrefix(f.prefix),
	}
	target := dest
	var archive *os.File
	if f.archive != "" {
		archive, err = os.Create(f.archive)
		if err != nil {
			return fmt.Errorf("create archive: %w", err)
		}
		opts = append(opts,
			assetviewer.WithArchive(archive),
			assetviewer.WithCompressionLevel(f.level))
		target = f.archive
	}
	if isTerminal(cmd.ErrOrStderr()) {
		opts = append(opts, assetviewer.WithProgress(progressPrinter(cmd.ErrOrStderr())))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exporting %s to %s...\n", version, target)
	res, err := assetviewer.NewExporter(store, opts...).Export(cmd.Context(), version, dest)
	if archive != nil {
		err = closeArchive(archive, err)
		if res == nil {
			_ = os.Remove(f.archive) //nolint:errcheck // best-effort cleanup
		}
	}
	if res == nil {
		return err
	}
	printSummary(out, res)
	if err != nil {
		return err
	}
	if !res.OK() {
		return &exitError{code: exitPartial, err: fmt.Errorf("%d of %d entries failed", res.Failed(), res.Failed()+res.Copied)}
	}
	return nil
}

// closeArchive closes c and joins its error onto err.
func closeArchive(c io.Closer, err error) error {
	if cerr := c.Close(); cerr != nil {
		return errors.Join(err, fmt.Errorf("close archive: %w", cerr))
	}
	return err
}

// chooseVersion returns the version argument, an interactively chosen
// version, or the store's latest version.
func (a *app) chooseVersion(cmd *cobra.Command, store *assetviewer.Store, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	ids, err := store.Versions()
	if err != nil {
		return "", err
	}
	latest, err := store.LatestVersion()
	if err != nil {
		return "", err
	}
	if isTerminal(cmd.InOrStdin()) {
		return promptVersion(cmd.InOrStdin(), cmd.ErrOrStderr(), ids, latest)
	}
	a.logger.Info("no version given, using latest", slog.String("version", latest))
	return latest, nil
}

func printSummary(w io.Writer, res *assetviewer.Result) {
	fmt.Fprintf(w, "Copied %d files (%s)", res.Copied, units.HumanSize(float64(res.Bytes)))
	if res.Skipped > 0 {
		fmt.Fprintf(w, ", skipped %d", res.Skipped)
	}
	fmt.Fprintf(w, ", %d failed\n", res.Failed())
	fmt.Fprintf(w, "Manifest %s\n", res.ManifestDigest)
	if res.ArchiveDigest != "" {
		fmt.Fprintf(w, "Archive %s\n", res.ArchiveDigest)
	}
	for _, failure := range res.Failures {
		fmt.Fprintf(w, "  FAILED [%s] %s: %v\n", failure.Kind, failure.LogicalName, failure.Err)
	}
}

// progressPrinter redraws a single status line on w.
func progressPrinter(w io.Writer) assetviewer.ProgressFunc {
	var mu sync.Mutex
	return func(ev assetviewer.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.Stage {
		case assetviewer.StageCopying:
			fmt.Fprintf(w, "\r\033[K[%d/%d] %s", ev.FilesDone, ev.FilesTotal, ev.Name)
		case assetviewer.StageDone:
			fmt.Fprint(w, "\r\033[K")
		}
	}
}
