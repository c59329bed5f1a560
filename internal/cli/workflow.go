package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/automateos/internal/domain"
	"github.com/shaiso/automateos/internal/engine"
	"github.com/shaiso/automateos/internal/orchestrator"
)

// ErrInvalidWorkflow — файл workflow не прошёл валидацию.
var ErrInvalidWorkflow = errors.New("workflow definition is invalid")

// NewWorkflowCmd создаёт группу команд для управления workflow.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflows",
	}

	cmd.AddCommand(
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
		newWorkflowCreateCmd(clientFn, outputFn),
		newWorkflowDeleteCmd(clientFn, outputFn),
		newWorkflowActivateCmd(clientFn, outputFn, true),
		newWorkflowActivateCmd(clientFn, outputFn, false),
		newWorkflowValidateCmd(outputFn),
		newWorkflowRunCmd(outputFn),
	)

	return cmd
}

var workflowHeaders = []string{"ID", "NAME", "WEBHOOK_ID", "ACTIVE", "CREATED"}

func workflowRow(wf *WorkflowResponse) []string {
	return []string{wf.ID, wf.Name, wf.WebhookID, strconv.FormatBool(wf.IsActive), timestamp(wf.CreatedAt)}
}

func workflowFields(wf *WorkflowResponse) []Field {
	nodes, _ := wf.Definition["nodes"].([]any)
	return []Field{
		{"ID", wf.ID},
		{"Name", wf.Name},
		{"Description", wf.Description},
		{"Webhook ID", wf.WebhookID},
		{"Webhook URL", wf.WebhookURL},
		{"Active", strconv.FormatBool(wf.IsActive)},
		{"Nodes", strconv.Itoa(len(nodes))},
		{"Created", timestamp(wf.CreatedAt)},
		{"Updated", timestamp(wf.UpdatedAt)},
	}
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			workflows, err := client.ListWorkflows()
			if err != nil {
				return err
			}

			rows := make([][]string, len(workflows))
			for i := range workflows {
				rows[i] = workflowRow(&workflows[i])
			}

			out.Print(workflowHeaders, rows, workflows)
			return nil
		},
	}
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show workflow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := clientFn().GetWorkflow(args[0])
			if err != nil {
				return err
			}

			outputFn().Record(workflowFields(wf), wf)
			return nil
		},
	}
}

func newWorkflowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "create FILE",
		Short: "Create a workflow from JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read workflow file: %w", err)
			}

			// Валидируем что это валидный JSON
			if !json.Valid(data) {
				return fmt.Errorf("workflow file is not valid JSON")
			}

			wf, err := clientFn().CreateWorkflow(json.RawMessage(data))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow created: %s (webhook %s)", wf.ID, wf.WebhookURL))
			out.Print(workflowHeaders, [][]string{workflowRow(wf)}, wf)
			return nil
		},
	}
}

func newWorkflowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteWorkflow(args[0]); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Workflow deleted: %s", args[0]))
			return nil
		},
	}
}

func newWorkflowActivateCmd(clientFn func() *Client, outputFn func() *Output, active bool) *cobra.Command {
	use, short := "activate ID", "Activate a workflow"
	if !active {
		use, short = "deactivate ID", "Deactivate a workflow"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			wf, err := clientFn().SetWorkflowActive(args[0], active)
			if err != nil {
				return err
			}

			out.Success("Workflow updated")
			out.Print(workflowHeaders, [][]string{workflowRow(wf)}, wf)
			return nil
		},
	}
}

func newWorkflowValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a workflow definition locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			wf, err := LoadWorkflowFile(args[0])
			if err != nil {
				return err
			}

			eng := orchestrator.New(orchestrator.Config{Logger: quietLogger()})
			report := eng.Validate(&wf.Definition)

			if out.jsonMode {
				out.JSON(report)
			} else {
				if len(report.Errors) > 0 {
					rows := make([][]string, len(report.Errors))
					for i, e := range report.Errors {
						rows[i] = []string{strconv.Itoa(i + 1), e}
					}
					out.Table([]string{"#", "ERROR"}, rows)
				}
				for _, w := range report.Warnings {
					out.Warn(w)
				}
			}

			if !report.Valid {
				return fmt.Errorf("%w: %d error(s)", ErrInvalidWorkflow, len(report.Errors))
			}
			out.Success(fmt.Sprintf("Workflow is valid (%d nodes)", len(wf.Definition.Nodes)))
			return nil
		},
	}
}

func newWorkflowRunCmd(outputFn func() *Output) *cobra.Command {
	var payload string
	var inputs []string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a workflow locally without the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			wf, err := LoadWorkflowFile(args[0])
			if err != nil {
				return err
			}

			body, err := parsePayload(payload, inputs)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			eng := orchestrator.New(orchestrator.Config{Logger: quietLogger()})
			result, runErr := eng.Execute(ctx, wf, LocalTrigger(body, time.Now()))
			if runErr != nil {
				var wfErr *domain.WorkflowExecutionError
				if errors.As(runErr, &wfErr) {
					out.JSON(wfErr.Details)
				}
				return runErr
			}

			out.Success(fmt.Sprintf("Workflow executed: %d node(s)", len(result.NodeResults)))
			out.JSON(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "", "Trigger payload as JSON object")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Payload values as KEY=VALUE (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Execution timeout")

	return cmd
}

// LoadWorkflowFile читает workflow из JSON файла.
//
// Поддерживаются два вида: полный {"name", "definition": {...}} и
// только определение {"nodes": [...], "connections": [...]}.
func LoadWorkflowFile(path string) (*domain.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var file struct {
		Name       string          `json:"name"`
		WebhookID  string          `json:"webhook_id"`
		Definition json.RawMessage `json:"definition"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("workflow file is not valid JSON: %w", err)
	}

	// Без ключа definition весь файл — определение
	raw := []byte(file.Definition)
	if len(file.Definition) == 0 {
		raw = data
	}
	def, err := engine.ParseDefinition(raw)
	if err != nil {
		return nil, err
	}

	name := file.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return domain.NewWorkflow(name, file.WebhookID, *def), nil
}

// LocalTrigger строит данные триггера для локального запуска,
// в том же виде, что собирает webhook-эндпоинт.
func LocalTrigger(payload map[string]any, now time.Time) map[string]any {
	return map[string]any{
		"payload":   payload,
		"method":    "POST",
		"headers":   map[string]any{},
		"url":       "local://workflow/run",
		"timestamp": now.UTC().Format(time.RFC3339Nano),
	}
}

// parsePayload собирает payload из --payload JSON и --input KEY=VALUE.
// Значения --input перекрывают ключи из --payload.
func parsePayload(raw string, inputs []string) (map[string]any, error) {
	payload := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("invalid --payload, expected JSON object: %w", err)
		}
		if payload == nil {
			payload = map[string]any{}
		}
	}

	for _, kv := range inputs {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}
		payload[parts[0]] = parts[1]
	}
	return payload, nil
}

// quietLogger — логи движка не смешиваются с выводом CLI.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
