package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"suture/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the submission queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue and worker summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			resp, err := client.QueueStatus(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workers: %d/%d active\n", resp.ActiveWorkers, resp.MaxWorkers)
			fmt.Fprintf(out, "Pending: %d\n", resp.QueueLength)
			if resp.Suspended {
				fmt.Fprintln(out, "Processing suspended: waiting for internet")
			}
			network := "offline"
			if resp.Network.Online {
				network = "online"
			}
			fmt.Fprintf(out, "Network: %s (last probe %s)\n", network, resp.Network.LastProbe.Local().Format("2006-01-02 15:04:05"))

			rows := buildCountRows(resp.Counts)
			if len(rows) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List submissions from the local database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				submissions, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(submissions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(submissions))
				for _, sub := range submissions {
					rows = append(rows, []string{
						sub.ID,
						string(sub.Status),
						sub.Email,
						strconv.Itoa(sub.Iteration),
						sub.SubmittedAt.Local().Format("2006-01-02 15:04:05"),
						strconv.Itoa(sub.RetryCount),
					})
				}
				headers := []string{"ID", "Status", "Email", "Iteration", "Submitted", "Retries"}
				aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed, failed, and cancelled submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.ClearTerminal(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d finished submissions\n", removed)
				return nil
			})
		},
	}
}

func buildCountRows(counts map[string]int) [][]string {
	statuses := make([]string, 0, len(counts))
	for status, count := range counts {
		if count == 0 {
			continue
		}
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		rows = append(rows, []string{status, strconv.Itoa(counts[status])})
	}
	return rows
}
