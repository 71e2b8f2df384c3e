package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/salesdrill/internal/config"
)

var (
	// Global flags
	verbose bool
	vendor  string
	timeout time.Duration

	cfg    *config.Config
	logger *slog.Logger
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	customerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	innerStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#888888"))
	stageStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F2C94C"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EB5757"))
	boxStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

var rootCmd = &cobra.Command{
	Use:   "drill",
	Short: "salesdrill - staged sales conversation practice",
	Long: `drill runs staged sales conversations against a simulated customer
from the terminal and manages the persona pool and stage definitions.

Configuration comes from the environment (and .env), the same variables the
server reads.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		_ = godotenv.Load()
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&vendor, "llm", "openai", "model vendor (openai, claude, gemini)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "bound for a single turn")

	rootCmd.AddCommand(chatCmd, rehearseCmd, personasCmd, stagesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
