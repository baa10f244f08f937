package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vocalsilence/internal/app"
	"vocalsilence/internal/questionnaire"
	"vocalsilence/internal/repository"
)

var (
	seedFile   string
	seedDryRun bool
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Publish a questionnaire as the active catalog",
		Long: `Validate a questionnaire file (YAML or JSON) and publish it to MongoDB as
the active catalog, used when QUESTIONNAIRE_SOURCE=mongo. Without --file the
built-in questionnaire is published.`,
		Args: cobra.NoArgs,
		RunE: runSeed,
	}
	cmd.Flags().StringVarP(&seedFile, "file", "f", "", "questionnaire file (default: built-in)")
	cmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "validate only, do not publish")
	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	catalog, err := questionnaire.Load(seedFile)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "questionnaire ok: %d questions, %d follow-ups, %d origin, %d dimensions\n",
		len(catalog.Questions), len(catalog.Followups), len(catalog.Origin), len(catalog.Dimensions))
	if seedDryRun {
		return nil
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := app.ConnectMongo(cmd.Context(), cfg.MongoURI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDatabase)
	if err := repository.EnsureIndexes(cmd.Context(), db); err != nil {
		return err
	}
	id, err := repository.NewQuestionnaireRepo(db).Publish(cmd.Context(), catalog)
	if err != nil {
		return fmt.Errorf("publish questionnaire: %w", err)
	}
	fmt.Fprintf(out, "published questionnaire %s\n", id)
	return nil
}
