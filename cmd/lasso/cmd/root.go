package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/lasso/internal/config"
	"github.com/MeKo-Tech/lasso/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "lasso",
	Short: "Interactive image annotation server and mask tooling",
	Long: `Annotation server for segmentation masks with prompt-driven mask
generation through an external segmentation backend.

This tool provides:
- An HTTP API for uploading images and managing mask annotations
- Per-image undo/redo history, selection and clipboard operations
- Contour-based control-point editing of masks
- COCO-format export with optional polygon derivation
- Proxying of text, point, box and template prompts to a segmentation backend

Examples:
  lasso serve --port 8080
  lasso serve --segmenter-url http://localhost:8100/api/annotation
  lasso export project.yaml --output annotations_coco.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			ver, commit, date := version.Info()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "lasso version %s\n", ver)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Date: %s\n", date)
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/lasso, /etc/lasso)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if globalConfig == nil {
			initConfig()
		}

		var logLevel slog.Level
		if globalConfig.Verbose {
			logLevel = slog.LevelDebug
		} else {
			switch globalConfig.LogLevel {
			case "debug":
				logLevel = slog.LevelDebug
			case "warn":
				logLevel = slog.LevelWarn
			case "error":
				logLevel = slog.LevelError
			default:
				logLevel = slog.LevelInfo
			}
		}

		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configLoader = config.NewLoader()
	if cfgFile != "" {
		configLoader.SetConfigFile(cfgFile)
	}

	var err error
	globalConfig, err = configLoader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}
	return globalConfig
}
