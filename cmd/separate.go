package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/logging"
	"github.com/kozaktomas/face-sorter/internal/sorter"
)

var separateCmd = &cobra.Command{
	Use:   "separate",
	Short: "Copy photos into one folder per recognised person",
	Long: `Separate classifies every image under the input folder by the faces it
contains and copies it into <output>/<name> for each known person found, or
<output>/unknown when nobody is recognised. Known people come from the
registry file in the reference folder, which is built from the reference
images (alice_1.jpg, alice_2.jpg, bob.png, ...) when missing.

While running, type p, r or c followed by Enter to pause, resume or cancel.
SIGUSR1 and SIGUSR2 pause and resume; SIGINT cancels.`,
	Args: cobra.NoArgs,
	RunE: runSeparate,
}

func init() {
	rootCmd.AddCommand(separateCmd)

	separateCmd.Flags().String("reference", "", "Folder with reference images of known people")
	separateCmd.Flags().String("input", "", "Folder with the photos to sort")
	separateCmd.Flags().String("output", "", "Folder receiving one subfolder per person")
	separateCmd.Flags().Int("workers", 0, "Number of parallel workers (0 = from config)")
	separateCmd.Flags().Float64("tolerance", 0, "Maximum face distance for a match (0 = from config)")
	separateCmd.Flags().String("report", "", "Report file (default from config)")
	separateCmd.Flags().Bool("json", false, "Output the session result as JSON")

	for _, name := range []string{"reference", "input", "output"} {
		if err := separateCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func runSeparate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applySeparateFlags(cmd, cfg); err != nil {
		return err
	}

	jsonOutput := mustGetBool(cmd, "json")

	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	queueLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}

	s := sorter.New(newCollaborator(cfg), sorter.Options{
		Workers:         cfg.Pipeline.WorkerCount(),
		RegistryFile:    cfg.Pipeline.RegistryFile,
		ReportFile:      cfg.Pipeline.ReportFile,
		UnknownFolder:   cfg.Pipeline.UnknownFolder,
		StagingDir:      cfg.Pipeline.StagingDir,
		PausePoll:       cfg.Pipeline.PausePoll,
		StaleStagingAge: cfg.Pipeline.StaleStagingAge,
		MaxWidth:        cfg.Preprocess.MaxWidth,
		MaxHeight:       cfg.Preprocess.MaxHeight,
		JPEGQuality:     cfg.Preprocess.JPEGQuality,
		LogLevel:        queueLevel,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := &controller{sorter: s, cancel: cancel}
	stopSignals := ctrl.watchSignals(ctx)
	defer stopSignals()
	if isTerminal(os.Stdin) {
		go ctrl.readCommands(ctx, os.Stdin)
	}

	out := newConsole(s, os.Stderr, isTerminal(os.Stderr))
	out.start()

	logger.Info("separate started", zap.Int("workers", cfg.Pipeline.WorkerCount()),
		zap.Float64("tolerance", cfg.Matching.EffectiveTolerance()),
		zap.String("metric", cfg.Matching.Metric))

	result, err := s.Start(ctx,
		mustGetString(cmd, "reference"),
		mustGetString(cmd, "input"),
		mustGetString(cmd, "output"))
	out.close()
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}
	printResult(result)
	return nil
}

// applySeparateFlags lets command-line flags override the loaded
// configuration and validates the result again.
func applySeparateFlags(cmd *cobra.Command, cfg *config.Config) error {
	if workers := mustGetInt(cmd, "workers"); workers != 0 {
		if workers < 0 {
			return errors.New("--workers must not be negative")
		}
		cfg.Pipeline.Workers = workers
	}
	if tolerance := mustGetFloat64(cmd, "tolerance"); tolerance != 0 {
		cfg.Matching.Tolerance = tolerance
	}
	if report := mustGetString(cmd, "report"); report != "" {
		cfg.Pipeline.ReportFile = report
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func printResult(result *sorter.Result) {
	fmt.Printf("Session %s\n", result.SessionID)
	fmt.Printf("Processed %d of %d photos", result.Processed, result.Total)
	if result.Cancelled {
		fmt.Print(" (cancelled)")
	}
	fmt.Println()

	if result.Summary != nil && len(result.Summary.Folders) > 0 {
		rows := make([][]string, 0, len(result.Summary.Folders))
		for _, f := range result.Summary.Folders {
			rows = append(rows, []string{f.Name, strconv.Itoa(f.Images)})
		}
		fmt.Println(renderTable([]string{"FOLDER", "PHOTOS"}, rows, []columnAlignment{alignLeft, alignRight}))
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	fmt.Printf("\nReport written to %s\n", result.ReportPath)
}
