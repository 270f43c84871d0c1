package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tingwen/kplus-repair-uploader/internal/batch"
	"github.com/tingwen/kplus-repair-uploader/internal/config"
	"github.com/tingwen/kplus-repair-uploader/internal/logging"
	"github.com/tingwen/kplus-repair-uploader/internal/remote"
	"github.com/tingwen/kplus-repair-uploader/internal/task"
	"github.com/tingwen/kplus-repair-uploader/internal/worker"
)

// CLI flags
var retryFlag bool

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "repairup",
	Short: "Batch uploader for repair records",
	Long: `Repairup uploads repair record batch files to the K-Plus repair system.

Each batch file holds one record per line in the 13-field comma format
produced by the capture tool. After a run, every line is tagged with its
outcome and the file is renamed to <base>_done.txt or <base>_fail.txt, so a
later retry only re-submits what failed.

Examples:
  repairup upload repair_batch_20260314_150926_535.txt
  repairup upload --retry repair_batch_20260314_150926_535_fail.txt
  repairup watch
  repairup verify "B1, B2, B3" B1 B2`,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload one or more batch files",
	Args:  cobra.MinimumNArgs(1),
	Run:   runUpload,
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch the record directory and upload new batch files",
	Args:  cobra.MaximumNArgs(1),
	Run:   runWatch,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <snr-text> <board-fid>...",
	Short: "Check board FIDs against a scanned SNR string",
	Args:  cobra.MinimumNArgs(2),
	Run:   runVerify,
}

func init() {
	uploadCmd.Flags().BoolVar(&retryFlag, "retry", false, "Process only lines not yet marked success")
	rootCmd.AddCommand(uploadCmd, watchCmd, verifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newManager(settings config.Settings) (*task.Manager, error) {
	factory := func() worker.RecordClient {
		return remote.New(remote.Config{
			BaseURL:       settings.BaseURL,
			LoginName:     settings.LoginName,
			LoginPassword: settings.LoginPassword,
		})
	}
	return task.NewManager(factory, settings.MaxConcurrentTasks)
}

// logEvents renders a task's event stream to the console log. It flips
// *failed when the task finishes unsuccessfully.
func logEvents(failed *bool, mu *sync.Mutex) task.Listener {
	return func(taskID string, ev worker.Event) {
		switch e := ev.(type) {
		case worker.StatusEvent:
			log.Info().Str("task", taskID).Msg(e.Text)
		case worker.ProgressEvent:
			log.Debug().Str("task", taskID).Int("percent", e.Percent).Msg("progress")
		case worker.RecordEvent:
			if e.Success {
				log.Debug().Str("task", taskID).Str("fid", e.ProductFID).Msg("record uploaded")
			} else {
				log.Warn().Str("task", taskID).Str("fid", e.ProductFID).Str("reason", e.Reason).Msg("record failed")
			}
		case worker.FinishedEvent:
			for _, line := range strings.Split(e.Summary, "\n") {
				log.Info().Str("task", taskID).Msg(line)
			}
			if !e.Success {
				mu.Lock()
				*failed = true
				mu.Unlock()
			}
		}
	}
}

func runUpload(cmd *cobra.Command, args []string) {
	logging.Init()
	ctx := cmd.Context()

	settings, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}
	logging.NewStartupLogger("upload").
		Config("baseURL", settings.BaseURL).
		Config("files", strings.Join(args, ", ")).
		Feature("retry", retryFlag).
		Log()

	manager, err := newManager(settings)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer manager.Shutdown()

	var (
		mu     sync.Mutex
		failed bool
	)
	listener := logEvents(&failed, &mu)

	ids := make([]string, 0, len(args))
	for _, file := range args {
		id, err := manager.Start(file, retryFlag, listener)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("Failed to start task")
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		manager.Wait(id)
	}

	if failed {
		os.Exit(1)
	}
}

func runWatch(cmd *cobra.Command, args []string) {
	logging.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}
	dir := settings.ResolveRecordDir()
	if len(args) == 1 {
		dir = args[0]
	}
	logging.NewStartupLogger("watch").
		Config("baseURL", settings.BaseURL).
		Config("recordDir", dir).
		Log()

	manager, err := newManager(settings)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer manager.Shutdown()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create watcher")
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		log.Fatal().Err(err).Str("dir", dir).Msg("Failed to watch record directory")
	}

	var (
		mu     sync.Mutex
		failed bool
	)
	listener := logEvents(&failed, &mu)

	log.Info().Str("dir", dir).Msg("Watching for new batch files")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) || !isUploadable(event.Name) {
				continue
			}
			if _, err := manager.Start(event.Name, false, listener); err != nil {
				log.Error().Err(err).Str("file", event.Name).Msg("Failed to start task")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

// isUploadable filters watcher events down to fresh batch files: plain .txt
// files that are not already tagged with an outcome and not a temp backup.
func isUploadable(path string) bool {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".txt") {
		return false
	}
	base := strings.TrimSuffix(name, ".txt")
	if strings.HasSuffix(base, "_done") || strings.HasSuffix(base, "_fail") {
		return false
	}
	return !strings.HasPrefix(name, "repair_backup_")
}

func runVerify(cmd *cobra.Command, args []string) {
	logging.Init()

	snrText, boardFIDs := args[0], args[1:]
	if batch.VerifySNR(boardFIDs, snrText) {
		fmt.Println("PASS")
		return
	}
	fmt.Println("FAIL")
	os.Exit(1)
}
