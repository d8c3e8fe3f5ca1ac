package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apischema/packages/schema"
)

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var watchFlag bool

var validateCmd = &cobra.Command{
	Use:   "validate [file|directory...]",
	Short: "Validate schema files",
	Long: `Validate schema files without calling any endpoint.

Every file is parsed and every endpoint name is checked: names may only
contain letters, digits and underscores, and must be unique per file.

Examples:
  apischema validate blog.yaml
  apischema validate ./schemas/ --watch`,
	RunE: validateCommand,
}

func init() {
	validateCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-validate")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	paths, err := schemaArgs(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	files, err := collectFiles(paths)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no schema files found"))
	}

	result := validateFiles(cmd, files)
	if !watchFlag {
		if result != nil {
			return withExitCode(ExitParseError, fmt.Errorf("validation failed"))
		}
		return nil
	}

	return watchFiles(cmd, paths, files)
}

// validateFiles checks every file and reports all problems found.
func validateFiles(cmd *cobra.Command, files []string) error {
	var result *multierror.Error
	for _, file := range files {
		if err := validateFile(file); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			result = multierror.Append(result, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
	}
	return result.ErrorOrNil()
}

func validateFile(file string) error {
	doc, err := schema.LoadFile(file, nil)
	if err != nil {
		return err
	}
	return schema.Validate(doc.Endpoints)
}

func watchFiles(cmd *cobra.Command, args, files []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed to watch %s: %v\n", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watchLoop(ctx, watcher.Events, watcher.Errors, WatchDebounceDelay, func(changed []string) {
		for _, file := range changed {
			fmt.Fprintf(cmd.OutOrStdout(), "\nFile changed: %s\n", file)
		}
		_ = validateFiles(cmd, changed)
		fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
	}, func(err error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
	})
}

// watchLoop collects changed schema files and hands them to onChange, sorted,
// once no further change arrived for delay. Both callbacks run on the
// calling goroutine.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, delay time.Duration, onChange func([]string), onError func(error)) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) && isSchemaFile(event.Name) {
				pending[event.Name] = struct{}{}
				timer.Reset(delay)
			}

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			sort.Strings(changed)
			clear(pending)
			onChange(changed)

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			onError(err)
		}
	}
}
