package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"survey-quiz-service/internal/app"
	"survey-quiz-service/internal/config"
	"survey-quiz-service/internal/infra/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewQuestionsCmd groups question bank maintenance.
func NewQuestionsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Validate or seed the question bank",
	}
	cmd.AddCommand(newQuestionsCheckCmd(configPath))
	cmd.AddCommand(newQuestionsSeedCmd(configPath))
	return cmd
}

func newQuestionsCheckCmd(configPath *string) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load the configured question bank and report what the server would serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if path != "" {
				cfg.Questions.Source = "file"
				cfg.Questions.Path = path
			}
			return checkQuestions(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "check this JSON/YAML file instead of the configured source")
	return cmd
}

func checkQuestions(ctx context.Context, cfg config.Config, out io.Writer) error {
	if cfg.Questions.Source != "postgres" {
		cfg.Postgres.URL = ""
	}
	cfg.Redis.Addr = ""
	res, err := openResources(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	loader, err := questionLoader(cfg, res)
	if err != nil {
		return err
	}
	bank, err := app.LoadQuestionBank(ctx, loader)
	if err != nil {
		return err
	}
	for i, q := range bank.Questions() {
		fmt.Fprintf(out, "%3d. %s\n", i+1, q.Text)
	}
	fmt.Fprintf(out, "%d questions OK\n", bank.Len())
	return nil
}

func newQuestionsSeedCmd(configPath *string) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the postgres question table with the contents of a JSON/YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.Questions.Path
			}
			return seedQuestions(cmd.Context(), cfg, path, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "question file to load (defaults to questions.path)")
	return cmd
}

func seedQuestions(ctx context.Context, cfg config.Config, path string, out io.Writer) error {
	if cfg.Postgres.URL == "" {
		return errors.New("postgres url not configured")
	}
	bank, err := app.LoadQuestionBank(ctx, app.NewFileQuestionLoader(path))
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg, zap.NewNop()); err != nil {
		return err
	}
	cfg.Redis.Addr = ""
	res, err := openResources(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	if err := postgres.SeedQuestions(ctx, res.pool, bank.Questions()); err != nil {
		return err
	}
	fmt.Fprintf(out, "seeded %d questions from %s\n", bank.Len(), path)
	return nil
}
