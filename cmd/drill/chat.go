package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/salesdrill/internal/config"
	"github.com/ashureev/salesdrill/internal/conversation"
	"github.com/ashureev/salesdrill/internal/domain"
	"github.com/ashureev/salesdrill/internal/llm"
	"github.com/ashureev/salesdrill/internal/persona"
	"github.com/ashureev/salesdrill/internal/session"
)

var (
	showInner bool
	portrait  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run a judged sales conversation in the terminal",
	Long: `Starts a session with a random persona and judges every reply against
the active stage. The session ends when the last stage passes, on EOF, or
when you type /quit.`,
	RunE: runChat,
}

var rehearseCmd = &cobra.Command{
	Use:   "rehearse",
	Short: "Talk to a persona without stage judging",
	Long: `Builds the simulated customer and answers freely. No stage is ever
judged, so the stage stays where it started.`,
	RunE: runRehearse,
}

func init() {
	chatCmd.Flags().BoolVar(&showInner, "inner", false, "print the customer's inner activity")
	rehearseCmd.Flags().BoolVar(&showInner, "inner", true, "print the customer's inner activity")
	rehearseCmd.Flags().StringVar(&portrait, "portrait", "", "image of the customer attached to the persona elaboration")
}

func openSource() (persona.Source, func(), error) {
	if cfg.PersonaSource == config.PersonaSourceSQLite {
		repo, err := openRepository()
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	}
	src, err := persona.NewFileSource(cfg.PersonaFile, cfg.StageFile)
	if err != nil {
		return nil, nil, err
	}
	return src, func() {}, nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	source, closeSource, err := openSource()
	if err != nil {
		return err
	}
	defer closeSource()

	models, err := llm.NewRegistry(cfg.LLM(), llm.PoolConfig{
		Concurrency: cfg.Models.Concurrency,
		Timeout:     cfg.Models.Timeout,
	}, logger)
	if err != nil {
		return err
	}
	mgr, err := session.NewManager(session.Config{
		Source:      source,
		Models:      models.Model,
		Retention:   conversation.Retention{Window: cfg.HistoryWindow},
		RawPersona:  !cfg.PersonaElaboration,
		JudgeModels: cfg.JudgeModels(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Building the customer..."))
	start, err := mgr.Start(ctx, session.StartRequest{Vendor: vendor, Operator: "cli"})
	if err != nil {
		return err
	}
	defer func() { _ = mgr.End(context.Background(), start.SessionID) }()

	fmt.Fprintln(out, boxStyle.Render(start.PersonaText))
	printStage(out, start.Stage, start.StageDescription)

	return readLoop(ctx, cmd.InOrStdin(), out, func(line string) (bool, error) {
		turnCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		res, err := mgr.Turn(turnCtx, start.SessionID, line)
		if err != nil {
			return false, err
		}
		printReply(out, res.Reply, res.InnerActivity)
		if res.Passed {
			fmt.Fprintln(out, stageStyle.Render(fmt.Sprintf("stage %d passed", res.EvaluatedStage)))
		}
		if res.Finished {
			fmt.Fprintln(out, titleStyle.Render("All stages complete."))
			return true, nil
		}
		if res.Passed {
			printStage(out, res.Stage, res.StageDescription)
		}
		return false, nil
	})
}

func runRehearse(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	source, closeSource, err := openSource()
	if err != nil {
		return err
	}
	defer closeSource()

	v, err := llm.ParseVendor(vendor)
	if err != nil {
		return err
	}
	client, err := llm.New(v, cfg.LLM())
	if err != nil {
		return err
	}
	model := pooled(v, client)
	p, err := source.RandomPersona(ctx)
	if err != nil {
		return err
	}
	stages, err := source.Stages(ctx)
	if err != nil {
		return err
	}

	opts := []conversation.CharacterOption{conversation.WithRetention(conversation.Retention{Window: cfg.HistoryWindow})}
	if !cfg.PersonaElaboration {
		opts = append(opts, conversation.WithRawPersona())
	}
	if portrait != "" {
		img, err := llm.LoadImage(portrait)
		if err != nil {
			return err
		}
		opts = append(opts, conversation.WithPortrait(img))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Building the customer..."))
	state := domain.NewState(p, stages.First())
	character, err := conversation.NewCharacter(ctx, model, stages, state, opts...)
	if err != nil {
		return err
	}
	if character.Raw() {
		text, err := p.Render()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, boxStyle.Render(text))
	} else {
		fmt.Fprintln(out, boxStyle.Render(state.Elaboration))
	}

	return readLoop(ctx, cmd.InOrStdin(), out, func(line string) (bool, error) {
		turnCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		reply, inner, err := character.GenerateTurn(turnCtx, line, state)
		if err != nil {
			return false, err
		}
		printReply(out, reply, inner)
		return false, nil
	})
}

// pooled bounds every call to model, elaboration included, by the
// configured model timeout.
func pooled(v llm.Vendor, model llm.Model) llm.Model {
	return llm.NewPool(model, llm.PoolConfig{
		Name:        string(v),
		Concurrency: cfg.Models.Concurrency,
		Timeout:     cfg.Models.Timeout,
	}, logger)
}

// readLoop feeds each input line to turn until turn reports done, the
// input ends, or ctx is cancelled. Failed turns are printed and the loop
// continues.
func readLoop(ctx context.Context, in io.Reader, out io.Writer, turn func(line string) (bool, error)) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		done, err := turn(line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, session.ErrSessionFinished) {
				return nil
			}
			fmt.Fprintln(out, errorStyle.Render("turn failed: ")+err.Error())
			continue
		}
		if done {
			return nil
		}
	}
}

func printStage(out io.Writer, stage int, description string) {
	fmt.Fprintln(out, stageStyle.Render(fmt.Sprintf("[stage %d] %s", stage, description)))
}

func printReply(out io.Writer, reply, inner string) {
	fmt.Fprintln(out, customerStyle.Render("customer: ")+reply)
	if showInner && inner != "" {
		fmt.Fprintln(out, innerStyle.Render("  ("+inner+")"))
	}
}
