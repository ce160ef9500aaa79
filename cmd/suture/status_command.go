package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <submission-id>",
		Short: "Show the status of a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			resp, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submission %s\n", resp.SubmissionID)
			fmt.Fprintf(out, "  Status:    %s\n", resp.Status)
			fmt.Fprintf(out, "  Submitted: %s\n", formatTimestamp(resp.SubmissionTime))
			if resp.QueuePosition != nil {
				fmt.Fprintf(out, "  Position:  %d\n", *resp.QueuePosition)
			}
			if resp.EstimatedProcessingTime != nil {
				fmt.Fprintf(out, "  Estimate:  %s\n", formatSeconds(*resp.EstimatedProcessingTime))
			}
			if resp.Score != nil {
				fmt.Fprintf(out, "  Score:     %.1f/10\n", *resp.Score)
			}
			if resp.RetryCount > 0 {
				fmt.Fprintf(out, "  Retries:   %d\n", resp.RetryCount)
			}
			if resp.Error != "" {
				fmt.Fprintf(out, "  Error:     %s\n", resp.Error)
			}
			return nil
		},
	}
}

func formatSeconds(seconds float64) string {
	return (time.Duration(seconds) * time.Second).String()
}

func formatTimestamp(value string) string {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}
