package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vocalsilence/internal/app"
	"vocalsilence/internal/service"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <participant>",
		Short: "Tear down a participant session and close any open crisis",
		Args:  cobra.ExactArgs(1),
		RunE:  runReset,
	}
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	err = a.Admin.Reset(cmd.Context(), args[0])
	if errors.Is(err, service.ErrSessionNotFound) {
		fmt.Fprintf(cmd.OutOrStdout(), "no session for %s\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session %s reset\n", args[0])
	return nil
}
