package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vocalsilence/internal/app"
	"vocalsilence/internal/model"
)

var chatParticipant string

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the engine from the terminal",
		Long: `Run a conversation against the real engine and stores. Replies are
printed instead of sent through WhatsApp. Type /quit to leave.`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}
	cmd.Flags().StringVarP(&chatParticipant, "participant", "p", "5500000000000", "participant id to converse as")
	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	return chatLoop(ctx, cmd, func(ctx context.Context, text string) ([]string, error) {
		release, err := a.Lock.Acquire(ctx, chatParticipant)
		if err != nil {
			return nil, err
		}
		defer release(context.Background())
		return a.Conversation.HandleMessage(ctx, model.InboundMessage{ParticipantID: chatParticipant, Body: text}), nil
	})
}

func chatLoop(ctx context.Context, cmd *cobra.Command, turn func(context.Context, string) ([]string, error)) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())

	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "/quit" {
			return nil
		}
		if text != "" {
			replies, err := turn(ctx, text)
			if err != nil {
				return err
			}
			for _, r := range replies {
				fmt.Fprintf(out, "\n%s\n", r)
			}
		}
		fmt.Fprint(out, "\n> ")
	}
	return scanner.Err()
}
