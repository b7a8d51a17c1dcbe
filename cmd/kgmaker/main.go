// Command kgmaker extracts knowledge-graph triples from text files, keeps
// them in spreadsheets, and imports them into a graph database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/kgmaker"
)

var (
	// cfg is loaded once before any subcommand runs.
	cfg kgmaker.Config

	configPath string
	envFile    string
	logFormat  string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "kgmaker",
	Short: "Build knowledge-graph triples from text",
	Long: `kgmaker extracts entity-relationship and entity-attribute triples from
plain text files with a language model, appends them to ERTriples.xlsx and
EATriples.xlsx, and imports those spreadsheets into a graph database.

Examples:
  kgmaker extract --input texts/ --output triples/ --kind relationship
  kgmaker extract --input texts/ --output triples/ --kind all
  kgmaker import --dir triples/ --uri sqlite://wetland.db
  kgmaker nodes --category 植物
  kgmaker serve --addr :8080
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
		if err := setupLogging(cmd.ErrOrStderr(), logFormat, logLevel, logFile); err != nil {
			return err
		}
		loaded, err := kgmaker.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML config file")
	pf.StringVar(&envFile, "env-file", ".env", "Path to .env file (ignored if missing)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&logFile, "log-file", "", "Also write logs to this file, rotated by size")
}

func main() {
	// Interrupts cancel the running job at its next file boundary.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("kgmaker failed", "error", err)
		os.Exit(1)
	}
}
