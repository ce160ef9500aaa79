package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"suture/internal/apiclient"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		name           string
		email          string
		program        string
		iteration      int
		additionalInfo string
	)

	cmd := &cobra.Command{
		Use:   "submit <video-file>",
		Short: "Submit a video for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			resp, err := client.Submit(cmd.Context(), apiclient.SubmitInput{
				VideoPath:      args[0],
				Name:           name,
				Email:          email,
				Program:        program,
				Iteration:      iteration,
				AdditionalInfo: additionalInfo,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submission accepted: %s\n", resp.SubmissionID)
			fmt.Fprintf(out, "  Status:   %s\n", resp.Status)
			fmt.Fprintf(out, "  Position: %d\n", resp.QueuePosition)
			fmt.Fprintf(out, "  Estimate: %s\n", formatSeconds(resp.EstimatedProcessingTime))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Submitter name")
	cmd.Flags().StringVar(&email, "email", "", "Submitter email (required)")
	cmd.Flags().StringVar(&program, "program", "", "Training program")
	cmd.Flags().IntVar(&iteration, "iteration", 0, "Attempt number for this exercise")
	cmd.Flags().StringVar(&additionalInfo, "info", "", "Additional context for reviewers")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
