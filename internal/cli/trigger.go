package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewTriggerCmd создаёт команду вызова webhook.
func NewTriggerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var payload string
	var inputs []string

	cmd := &cobra.Command{
		Use:   "trigger WEBHOOK_ID",
		Short: "Trigger a workflow through its webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			body, err := parsePayload(payload, inputs)
			if err != nil {
				return err
			}

			resp, err := clientFn().Trigger(args[0], body)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("%s: %s", resp.Message, resp.JobID))
			out.Print(
				[]string{"JOB_ID", "WORKFLOW_ID", "STATUS", "QUEUE"},
				[][]string{{resp.JobID, resp.WorkflowID, resp.Status, resp.QueueType}},
				resp,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "", "Webhook body as JSON object")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Payload values as KEY=VALUE (repeatable)")

	return cmd
}

// NewJobCmd создаёт группу команд для заданий очереди.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect queued jobs",
	}

	cmd.AddCommand(newJobStatusCmd(clientFn, outputFn))
	return cmd
}

func newJobStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var wait bool
	var interval, timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show job status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			deadline := time.Now().Add(timeout)
			for wait && !job.IsTerminal() {
				if time.Now().After(deadline) {
					return fmt.Errorf("job %s still %s after %s", job.ID, job.Status, timeout)
				}
				time.Sleep(interval)
				if job, err = client.GetJob(args[0]); err != nil {
					return err
				}
			}

			errMsg := job.Error
			if job.FailureInfo != nil {
				errMsg = fmt.Sprint(job.FailureInfo["message"])
			}

			out.Record([]Field{
				{"Job ID", job.ID},
				{"Workflow ID", job.WorkflowID},
				{"Status", job.Status},
				{"Created", timestamp(job.CreatedAt)},
				{"Started", timestamp(job.StartedAt)},
				{"Ended", timestamp(job.EndedAt)},
				{"Error", errMsg},
			}, job)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the job completes")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval for --wait")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Maximum time to wait")

	return cmd
}

// NewQueueCmd создаёт группу команд для очереди.
func NewQueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the job queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := clientFn().QueueInfo()
			if err != nil {
				return err
			}

			outputFn().Print(
				[]string{"NAME", "BACKEND", "LENGTH", "STARTED", "FINISHED", "FAILED"},
				[][]string{{
					info.Name,
					info.Backend,
					strconv.Itoa(info.Length),
					strconv.FormatInt(info.StartedJobCount, 10),
					strconv.FormatInt(info.FinishedJobCount, 10),
					strconv.FormatInt(info.FailedJobCount, 10),
				}},
				info,
			)
			return nil
		},
	})

	return cmd
}
