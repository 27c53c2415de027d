package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/punch-kiosk/internal/config"
)

var policyFile string

var rootCmd = &cobra.Command{
	Use:   "punch-kiosk",
	Short: "Face recognition attendance kiosk",
	Long: `Punch Kiosk watches a camera, recognizes enrolled employees against a
face gallery, asks for a head turn and records attendance punches.`,
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
	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "Recognition policy YAML (defaults to KIOSK_POLICY_FILE)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the environment, applies the policy override file and validates the result.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()

	path := policyFile
	if path == "" {
		path = os.Getenv("KIOSK_POLICY_FILE")
	}
	if path != "" {
		if err := cfg.ApplyPolicyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
