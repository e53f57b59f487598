package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"hoursboard/internal/log"
)

// Editors and spreadsheet apps usually save in several steps.
const watchDebounce = 300 * time.Millisecond

func newWatchCmd(root *rootOptions) *cobra.Command {
	o := &summarizeOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Re-run summarize whenever the spreadsheet changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.watch(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
		},
	}
	o.addFlags(cmd)
	return cmd
}

func (o *summarizeOptions) watch(ctx context.Context, w, errOut io.Writer, path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := o.query(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: a save by rename replaces the watched inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	logger := o.logger()
	o.refresh(ctx, w, errOut, path)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, path) {
				continue
			}
			logger.DebugContext(ctx, "Spreadsheet changed", log.FieldFilename, ev.Name, "op", ev.Op.String())
			debounce = time.After(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "File watch error", log.FieldError, err)
		case <-debounce:
			debounce = nil
			o.refresh(ctx, w, errOut, path)
		}
	}
}

// refresh prints one report. Load errors are reported and the watch goes on.
func (o *summarizeOptions) refresh(ctx context.Context, w, errOut io.Writer, path string) {
	fmt.Fprintf(w, "== %s (%s)\n", filepath.Base(path), time.Now().Format(time.TimeOnly))
	if err := o.run(ctx, w, errOut, path); err != nil {
		fmt.Fprintln(errOut, "error:", err)
	}
	fmt.Fprintln(w)
}

func relevant(ev fsnotify.Event, path string) bool {
	if filepath.Clean(ev.Name) != path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
