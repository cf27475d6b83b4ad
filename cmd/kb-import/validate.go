package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/upb/helpdesk-orchestrator/internal/textvec"
	"github.com/upb/helpdesk-orchestrator/services/knowledge"
)

func newValidateCmd() *cobra.Command {
	var weighting string

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a knowledge base file without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := textvec.ParseWeighting(weighting)
			if err != nil {
				return err
			}

			entries, err := knowledge.LoadFile(args[0])
			if err != nil {
				return err
			}
			index, err := knowledge.NewIndex(entries, textvec.Options{Weighting: w})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d entries, vocabulary of %d terms\n",
				args[0], index.Len(), index.Vectorizer().Dimensions())
			printCategories(out, entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&weighting, "weighting", "tf", "Term weighting (tf or tfidf)")

	return cmd
}
