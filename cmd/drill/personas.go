package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/salesdrill/internal/persona"
	"github.com/ashureev/salesdrill/internal/store"
)

var (
	personaCount  int
	personaSeed   uint64
	personaOutput string
	personaToDB   bool
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "Manage the persona pool",
}

var personasGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Sample synthetic customer personas",
	Long: `Samples personas from the demographic distributions and writes them to a
JSON or YAML file, or appends them to the SQLite pool.

Example:
  drill personas generate -n 200 -o persona.json
  drill personas generate -n 200 --sqlite`,
	RunE: runPersonasGenerate,
}

var personasCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the size of the configured persona pool",
	RunE: func(cmd *cobra.Command, _ []string) error {
		source, closeSource, err := openSource()
		if err != nil {
			return err
		}
		defer closeSource()

		var n int
		switch s := source.(type) {
		case *persona.FileSource:
			n = s.Len()
		case store.Repository:
			if n, err = s.CountPersonas(cmd.Context()); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

func init() {
	personasGenerateCmd.Flags().IntVarP(&personaCount, "count", "n", 100, "number of personas")
	personasGenerateCmd.Flags().Uint64Var(&personaSeed, "seed", 0, "sampler seed (0 uses the clock)")
	personasGenerateCmd.Flags().StringVarP(&personaOutput, "output", "o", "", "output file (.json, .yaml or .yml)")
	personasGenerateCmd.Flags().BoolVar(&personaToDB, "sqlite", false, "append to the SQLite pool at DB_PATH")

	personasCmd.AddCommand(personasGenerateCmd, personasCountCmd)
}

func runPersonasGenerate(cmd *cobra.Command, _ []string) error {
	if personaCount <= 0 {
		return errors.New("--count must be > 0")
	}
	if personaOutput == "" && !personaToDB {
		return errors.New("one of --output or --sqlite is required")
	}

	seed := personaSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	personas := persona.NewSampler(seed).SampleN(personaCount)
	out := cmd.OutOrStdout()

	if personaOutput != "" {
		if err := persona.WritePersonas(personaOutput, personas); err != nil {
			return err
		}
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("wrote %d personas to %s", len(personas), personaOutput)))
	}
	if personaToDB {
		repo, err := openRepository()
		if err != nil {
			return err
		}
		defer repo.Close()
		n, err := repo.SavePersonas(cmd.Context(), personas)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("added %d personas to %s", n, cfg.DBPath)))
	}
	return nil
}

func openRepository() (*store.SQLiteStore, error) {
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	return repo, nil
}
