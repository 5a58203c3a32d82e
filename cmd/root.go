package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "face-sorter",
	Short: "Sort photos into per-person folders using face recognition",
	Long: `Face Sorter compares the faces found in a folder of photos with a set of
reference images of known people and copies every photo into the folder of
each person recognised in it. Photos without a known face go to "unknown".`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (default $FACE_SORTER_CONFIG)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
	if configFile == "" {
		configFile = os.Getenv("FACE_SORTER_CONFIG")
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
