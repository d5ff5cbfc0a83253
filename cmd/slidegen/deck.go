package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"portfolio-slides/slide-service/internal/app"
	"portfolio-slides/slide-service/internal/deck"
)

var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Inspect or edit the master deck manifest",
}

var deckListCmd = &cobra.Command{
	Use:   "list",
	Short: "List master deck pages in order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, argv []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		// listing reads only the manifest
		entries, err := deck.NewStore(nil, nil, cfg.Deck, logger).Entries()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, e := range entries {
			fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", i+1, e.Slug, e.Company, e.UpdatedAt.Format("2006-01-02"))
		}
		fmt.Fprintf(out, "%d pages\n", len(entries))
		return nil
	},
}

var deckRemoveCmd = &cobra.Command{
	Use:   "remove <company>",
	Short: "Drop a company's page and re-render the master deck",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, argv []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		files, err := app.NewFileStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		company := strings.Join(argv, " ")
		res, err := deck.NewStore(files, nil, cfg.Deck, logger).Remove(cmd.Context(), company)
		if err != nil {
			return fmt.Errorf("failed to remove %s: %w", company, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s, %d pages left\n", company, res.Pages)
		return nil
	},
}

func init() {
	deckCmd.AddCommand(deckListCmd, deckRemoveCmd)
}
