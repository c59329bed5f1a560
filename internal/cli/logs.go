package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

// NewLogsCmd создаёт группу команд для журнала выполнения.
func NewLogsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect and clean up execution logs",
	}

	cmd.AddCommand(
		newLogsListCmd(clientFn, outputFn),
		newLogsShowCmd(clientFn, outputFn),
		newLogsCountCmd(clientFn, outputFn),
		newLogsCleanupCmd(clientFn, outputFn),
		newLogsStatsCmd(clientFn, outputFn),
	)

	return cmd
}

func newLogsListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListLogsOpts

	cmd := &cobra.Command{
		Use:   "list WORKFLOW_ID",
		Short: "List execution logs of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := clientFn().ListLogs(args[0], opts)
			if err != nil {
				return err
			}

			headers := []string{"ID", "STATUS", "STARTED", "COMPLETED", "ERROR"}
			rows := make([][]string, len(logs))
			for i, l := range logs {
				rows[i] = []string{l.ID, l.Status, timestamp(l.StartedAt), timestamp(l.CompletedAt), l.ErrorMessage}
			}

			outputFn().Print(headers, rows, logs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (success, failed, running)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results (1-100)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of results to skip")

	return cmd
}

func newLogsShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show LOG_ID",
		Short: "Show a full execution log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := clientFn().GetLog(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			out.Record([]Field{
				{"ID", entry.ID},
				{"Workflow ID", entry.WorkflowID},
				{"Job ID", entry.JobID},
				{"Status", entry.Status},
				{"Started", timestamp(entry.StartedAt)},
				{"Completed", timestamp(entry.CompletedAt)},
				{"Error", entry.ErrorMessage},
			}, entry)

			// Вложенный результат в табличном режиме — отдельным JSON
			if !out.jsonMode && len(entry.Result) > 0 {
				out.JSON(entry.Result)
			}
			return nil
		},
	}
}

func newLogsCountCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "count WORKFLOW_ID",
		Short: "Count execution logs of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := clientFn().CountLogs(args[0], status)
			if err != nil {
				return err
			}

			outputFn().Print(
				[]string{"WORKFLOW_ID", "COUNT"},
				[][]string{{args[0], strconv.FormatInt(count, 10)}},
				map[string]int64{"count": count},
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (success, failed, running)")
	return cmd
}

func newLogsCleanupCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts CleanupOpts

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old execution logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			resp, err := clientFn().CleanupLogs(opts)
			if err != nil {
				return err
			}

			verb := "Deleted"
			if resp.DryRun {
				verb = "Would delete"
			}
			scope := "logs"
			if resp.Status != "" {
				scope = resp.Status + " logs"
			}
			out.Success(fmt.Sprintf("%s %d %s older than %d days", verb, resp.DeletedCount, scope, resp.DaysToKeep))

			if out.jsonMode {
				out.JSON(resp)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.DaysToKeep, "days", 0, "Keep logs newer than N days (1-365, default 30, or 7 with --status)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Delete only logs with this status")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Only count logs that would be deleted")

	return cmd
}

func newLogsStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show execution log statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := clientFn().LogStats()
			if err != nil {
				return err
			}

			rows := [][]string{{"total", strconv.FormatInt(stats.TotalLogs, 10)}}
			rows = append(rows, sortedRows("status", stats.ByStatus)...)
			rows = append(rows, sortedRows("age", stats.ByAge)...)
			if stats.OldestLog != "" {
				rows = append(rows, []string{"oldest", stats.OldestLog})
			}

			outputFn().Print([]string{"METRIC", "VALUE"}, rows, stats)
			return nil
		},
	}
}

// sortedRows превращает map счётчиков в строки таблицы в порядке ключей.
func sortedRows(prefix string, m map[string]int64) [][]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{prefix + "." + k, strconv.FormatInt(m[k], 10)}
	}
	return rows
}
