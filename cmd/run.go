package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/batch"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/cachekey"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/hashing"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/listing"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/logger"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/prescore"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/progress"
)

const (
	PromptResume  = "Resume previous run"
	PromptRestart = "Start over"

	defaultProgressDir = ".match-progress"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a batch evaluation of the resume against the configured job listing",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("restart", "r", false, "discard a saved progress snapshot and start from scratch")
	runCmd.Flags().BoolP("auto-resume", "y", false, "resume a saved snapshot without asking")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting "+app, zap.String("version", version))

	if config == nil {
		logger.Fatal("config is required")
	}
	if config.Subject == nil || config.Subject.File == "" {
		logger.Fatal("resume file is required under subject.file")
	}

	subjectText, subjectID, err := loadSubject(config.Subject)
	if err != nil {
		logger.Fatal("loading resume", zap.Error(err))
	}

	phase := cachekey.PhaseScoring
	if config.Batch != nil && config.Batch.Phase != "" {
		phase, err = cachekey.ParsePhase(config.Batch.Phase)
		if err != nil {
			logger.Fatal("parsing batch phase", zap.Error(err))
		}
	}

	source, closeSource, err := newListingSource(ctx, config.Listing)
	if err != nil {
		logger.Fatal("building job listing source", zap.Error(err))
	}
	defer closeSource()

	jobs, err := source.Jobs(ctx)
	if err != nil {
		logger.Fatal("reading job listing", zap.Error(err))
	}

	logger.Info("loaded job listing", zap.Int("count", len(jobs)))

	if len(jobs) == 0 {
		logger.Info("exiting", zap.String("reason", "no jobs in the listing"))
		return
	}

	coordinator, err := newCoordinator(ctx, config, logger)
	if err != nil {
		logger.Fatal("building batch coordinator", zap.Error(err))
	}

	progressStore, err := newProgressStore(config.Progress, logger)
	if err != nil {
		logger.Fatal("building progress store", zap.Error(err))
	}

	completed := resumeOrRestart(ctx, cmd, progressStore, subjectID, logger)

	request := batch.Request{
		SubjectID:   subjectID,
		SubjectText: subjectText,
		Phase:       phase,
		Items:       buildItems(subjectText, jobs),
		Completed:   completed,
	}

	run, err := coordinator.Run(ctx, request)
	if err != nil {
		logger.Fatal("starting batch run", zap.Error(err))
	}

	watchRun(ctx, run, progressStore, completed, logger)

	results, err := run.Wait()
	if err != nil {
		logger.Fatal("batch run failed", zap.Error(err))
	}

	printSummary(results, logger)
}

func loadSubject(cfg *SubjectConfig) (text, id string, err error) {
	data, err := os.ReadFile(cfg.File)
	if err != nil {
		return "", "", fmt.Errorf("reading resume file %q: %w", cfg.File, err)
	}

	text = string(data)
	if strings.TrimSpace(text) == "" {
		return "", "", fmt.Errorf("resume file %q is empty", cfg.File)
	}

	id = strings.TrimSpace(cfg.ID)
	if id == "" {
		// Content-derived id: editing the resume naturally invalidates
		// any saved snapshot.
		id = hashing.Digest(text)[:16]
	}

	return text, id, nil
}

// buildItems converts the listing into batch items, filling the auxiliary
// score hint with a keyword prescore when the listing carries none.
func buildItems(subjectText string, jobs []listing.Job) []batch.Item {
	keywords := prescore.Keywords(subjectText)

	items := make([]batch.Item, 0, len(jobs))
	for _, job := range jobs {
		text := job.Description
		if job.Title != "" {
			text = job.Title + "\n\n" + job.Description
		}

		aux := job.MatchScore
		if aux == 0 {
			aux = prescore.Score(keywords, text)
		}

		items = append(items, batch.Item{
			ReferenceID:    job.ID,
			Text:           text,
			AuxiliaryScore: aux,
		})
	}

	return items
}

func newProgressStore(cfg *ProgressConfig, logger *zap.Logger) (progress.Store, error) {
	dir := defaultProgressDir
	if cfg != nil && cfg.Dir != "" {
		dir = cfg.Dir
	}
	return progress.NewFile(dir, logger)
}

// resumeOrRestart loads a saved snapshot for this subject and asks whether
// to reuse it. Snapshots for other subjects never match.
func resumeOrRestart(ctx context.Context, cmd *cobra.Command, store progress.Store, subjectID string, logger *zap.Logger) []batch.ItemResult {
	snap, err := store.Load(ctx, subjectID)
	if errors.Is(err, progress.ErrNotFound) {
		return nil
	}
	if err != nil {
		logger.Warn("loading progress snapshot", zap.Error(err))
		return nil
	}

	if cmd.Flag("restart").Value.String() == "true" {
		clearSnapshot(ctx, store, logger)
		return nil
	}

	if snap.Complete {
		logger.Info("previous run already complete, reusing its results",
			zap.Int("processed", snap.Processed),
			zap.Int("total", snap.Total),
		)
		return snap.Results
	}

	if cmd.Flag("auto-resume").Value.String() != "true" {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Found a saved run (%d/%d processed). Continue?", snap.Processed, snap.Total),
			Items: []string{PromptResume, PromptRestart},
		}

		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if action == PromptRestart {
			clearSnapshot(ctx, store, logger)
			return nil
		}
	}

	logger.Info("resuming previous run",
		zap.Int("processed", snap.Processed),
		zap.Int("total", snap.Total),
	)

	return snap.Results
}

func clearSnapshot(ctx context.Context, store progress.Store, logger *zap.Logger) {
	if err := store.Clear(ctx); err != nil {
		logger.Warn("clearing progress snapshot", zap.Error(err))
	}
}

// watchRun consumes the event stream, logging progress and persisting a
// snapshot on every tick. Snapshot failures are warnings; the run proceeds
// in memory without durability.
func watchRun(ctx context.Context, run *batch.Run, store progress.Store, seeded []batch.ItemResult, logger *zap.Logger) {
	accumulated := make([]batch.ItemResult, 0, run.Total)
	accumulated = append(accumulated, seeded...)

	for event := range run.Events() {
		if event.Item != nil {
			accumulated = append(accumulated, *event.Item)

			field := zap.Skip()
			if event.Item.Status == batch.StatusOK && event.Item.Envelope != nil {
				field = zap.Float64("score", event.Item.Envelope.Data.Score)
			} else if event.Item.Error != "" {
				field = zap.String("error", event.Item.Error)
			}

			logger.Info("item finished",
				zap.String("reference_id", event.Item.ReferenceID),
				zap.String("status", string(event.Item.Status)),
				zap.Int("processed", event.Processed),
				zap.Int("total", event.Total),
				field,
			)
		}

		if err := store.Save(ctx, progress.FromRun(run.SubjectID, event, accumulated)); err != nil {
			logger.Warn("saving progress snapshot", zap.Error(err))
		}
	}
}

func printSummary(results []*batch.ItemResult, logger *zap.Logger) {
	successes, failures := 0, 0
	for _, res := range results {
		if res.Status == batch.StatusOK {
			successes++
		} else {
			failures++
		}
	}

	logger.Info("batch complete",
		zap.Int("total", len(results)),
		zap.Int("succeeded", successes),
		zap.Int("failed", failures),
	)

	for _, res := range results {
		if res.Status != batch.StatusFailed {
			continue
		}
		logger.Warn("item needs a retry",
			zap.String("reference_id", res.ReferenceID),
			zap.String("error", res.Error),
		)
	}
}
