package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ashureev/salesdrill/internal/persona"
)

var stagesImport bool

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Inspect and import stage definitions",
}

var stagesCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a stage file and print the stage table",
	Long: `Loads a stage definition file (STAGE_FILE when no file is given),
validates it and prints every stage. With --sqlite the stages replace the
definitions stored at DB_PATH.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStagesCheck,
}

func init() {
	stagesCheckCmd.Flags().BoolVar(&stagesImport, "sqlite", false, "replace the stages stored at DB_PATH")
	stagesCmd.AddCommand(stagesCheckCmd)
}

func runStagesCheck(cmd *cobra.Command, args []string) error {
	path := cfg.StageFile
	if len(args) == 1 {
		path = args[0]
	}
	stages, err := persona.LoadStages(path)
	if err != nil {
		return err
	}

	var rows []string
	for _, st := range stages.Stages() {
		rows = append(rows, fmt.Sprintf("%s %s\n   %s",
			stageStyle.Render(fmt.Sprintf("%2d", st.ID)),
			st.Objective,
			innerStyle.Render(st.CurrentState)))
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("%s: %d stages, last id %d", path, stages.Len(), stages.Count())),
		strings.Join(rows, "\n"))
	fmt.Fprintln(cmd.OutOrStdout(), boxStyle.Render(body))

	if !stagesImport {
		return nil
	}
	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.ReplaceStages(cmd.Context(), stages.Stages()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("stages imported into "+cfg.DBPath))
	return nil
}
