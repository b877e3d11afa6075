package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/TobiSchelling/surveyscore/internal/codebook"
	"github.com/TobiSchelling/surveyscore/internal/config"
	"github.com/TobiSchelling/surveyscore/internal/icar"
	"github.com/TobiSchelling/surveyscore/internal/logging"
	"github.com/TobiSchelling/surveyscore/internal/pipeline"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     = zap.NewNop()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "surveyscore",
	Short:        "Score psychometric survey exports",
	Long:         "surveyscore files new survey exports, isolates respondents not seen in the previous export, scores them against the IPIP-NEO item key and writes per-respondent reports.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", path, err)
		}

		logger, err = logging.New(cfg.Logging.Level, verbose)
		if err != nil {
			return err
		}
		logger.Debug("config loaded", zap.String("path", path), zap.String("root", cfg.GetRoot()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(codebookCmd)
	rootCmd.AddCommand(normsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("surveyscore", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/surveyscore/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the data root, item key location and identity columns.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending and filed survey exports",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := pipeline.Inspect(cfg)
		if err != nil {
			return err
		}

		fmt.Printf("Data folder: %s\n\n", s.DataDir)
		fmt.Printf("Waiting in intake: %d\n", s.Pending)
		fmt.Println("\nFiled exports:")
		for _, c := range s.Categories {
			fmt.Printf("  %-14s %d\n", c.Category.Dir()+":", c.Exports)
		}
		return nil
	},
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: intake -> diff -> score -> export -> render",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pipe := pipeline.New(cfg, logger)

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(ctx)
		} else {
			result = pipe.Run(ctx)
		}

		fmt.Printf("Run %s\n", result.RunID)
		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/5: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}
		if err := result.Err(); err != nil {
			return err
		}

		if result.Batch != nil && len(result.Batch.Failures) > 0 {
			fmt.Println("\nRespondents not scored:")
			for _, err := range multierr.Errors(result.Batch.Err()) {
				fmt.Printf("  %v\n", err)
			}
		}

		if len(result.Reports) > 0 {
			fmt.Printf("\nPipeline complete! Reports are in %s\n", filepath.Dir(result.Reports[0]))
		}
		if result.Batch != nil && len(result.Batch.Failures) > 0 {
			return fmt.Errorf("%d respondents could not be scored", len(result.Batch.Failures))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without moving or writing files")
}

// --- codebook command ---

var codebookCmd = &cobra.Command{
	Use:   "codebook",
	Short: "Check the item key and show the layout of each survey variant",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Resolve(cfg.Paths.Codebook)
		cb, err := codebook.Load(path, logger)
		if err != nil {
			return err
		}

		fmt.Printf("Item key: %s\n", path)
		fmt.Printf("  Entries: %d\n", len(cb.Entries))
		fmt.Printf("  Social desirability items: %d\n", len(cb.Desirability))
		for _, v := range []codebook.Variant{codebook.Short120, codebook.Full300} {
			s := cb.Schema(v)
			fmt.Printf("\n%s: %d items, %d reverse-keyed\n", v, s.Len(), len(s.ReverseItems()))
			for _, d := range s.Dimensions() {
				fmt.Printf("  %s (%d items): %s\n", d, len(s.DimensionItems(d)), strings.Join(s.DimensionFacets(d), ", "))
			}
		}
		return nil
	},
}

// --- norms command ---

var normsCmd = &cobra.Command{
	Use:   "norms",
	Short: "Build the ICAR norm tables from the published sample data",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := icar.Paths{
			Key:      cfg.Resolve(cfg.Paths.ICARKey),
			Sample16: cfg.Resolve(cfg.Paths.ICAR16Sample),
			Sample60: cfg.Resolve(cfg.Paths.ICAR60Sample),
			Output60: cfg.Resolve(cfg.Paths.ICAROutput),
		}
		if cfg.Paths.ICAR16Output != "" {
			p.Output16 = cfg.Resolve(cfg.Paths.ICAR16Output)
		}

		n16, n60, err := icar.Build(p, logger)
		if err != nil {
			return err
		}
		if p.Output16 != "" {
			fmt.Printf("ICAR16 sample: %d rows -> %s\n", len(n16.Rows), p.Output16)
		} else {
			fmt.Printf("ICAR16 sample: %d rows\n", len(n16.Rows))
		}
		fmt.Printf("ICAR60 sample: %d rows -> %s\n", len(n60.Rows), p.Output60)
		return nil
	},
}
