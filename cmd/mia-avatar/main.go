// Command mia-avatar runs the avatar mood and expression controller: as a
// server streaming frames to a renderer, as a terminal preview, or as a
// model inspector.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fulopkrisztian-prog/Mia/internal/config"
	"github.com/fulopkrisztian-prog/Mia/internal/logging"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	cfg     *config.Config
	log     *logging.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mia-avatar",
		Short: "Mia - animated avatar driven by chat activity",
		Long: `mia-avatar tracks Mia's mood from chat activity, animates her model
(expressions, blinking, idle sway, lip movement while a caption types) and
shows short "thought" captions when her mood changes.

Stream frames to a renderer:  mia-avatar serve
Watch it in the terminal:     mia-avatar preview
Check a model file:           mia-avatar inspect assets/Mia_Neutral.vrm`,
		PersistentPreRunE:  initApp,
		PersistentPostRunE: closeApp,
		SilenceUsage:       true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.mia-avatar/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mia-avatar v%s\n", version)
		},
	})
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(inspectCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initApp loads .env files, the config and the logger before any command.
func initApp(cmd *cobra.Command, args []string) error {
	loadEnvFiles()

	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if verbose {
		cfg.Log.Level = logging.LevelDebug
	}
	// The preview owns the terminal.
	if cmd.Name() == "preview" {
		cfg.Log.Console = false
	}

	log, err = logging.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	return nil
}

func closeApp(cmd *cobra.Command, args []string) error {
	if log == nil {
		return nil
	}
	return log.Close()
}

// loadEnvFiles reads ./.env and ~/.mia-avatar/.env. Variables already set in
// the environment win.
func loadEnvFiles() {
	files := []string{".env"}
	if dir, err := config.GetConfigDir(); err == nil {
		files = append(files, filepath.Join(dir, ".env"))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}
