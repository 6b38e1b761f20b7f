// Package skilllearn implements the Skill-Learn Distiller and the
// Skill-Learn Agent: the two consumers that turn a completed task into a
// durable addition to a project's skill library. Grounded on the same
// per-iteration-transaction loop shape as internal/taskagent, generalized
// from task-bucketing tools to the skill-library mutation palette.
package skilllearn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/acontext-run/runtime/internal/event"
	"github.com/acontext-run/runtime/internal/llm"
	"github.com/acontext-run/runtime/internal/mq"
	"github.com/acontext-run/runtime/internal/storage"
	"github.com/acontext-run/runtime/pkg/types"
)

// SkillLearnTaskBody is skill-learn-task's wire shape, published by the
// Task Agent's post-commit drain.
type SkillLearnTaskBody struct {
	ProjectID string `json:"project_id"`
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
}

// SkillLearnDistilledBody is skill-learn-distilled's wire shape, published
// by the Distiller once it has something worth acting on.
type SkillLearnDistilledBody struct {
	ProjectID       string `json:"project_id"`
	SessionID       string `json:"session_id"`
	TaskID          string `json:"task_id"`
	LearningSpaceID string `json:"learning_space_id"`
	DistilledContext string `json:"distilled_context"`
}

// ReportSuccessAnalysisArgs is report_success_analysis's argument struct.
type ReportSuccessAnalysisArgs struct {
	IsWorthLearning bool     `json:"is_worth_learning"`
	SkipReason      string   `json:"skip_reason,omitempty"`
	Goal            string   `json:"goal,omitempty"`
	Plan            string   `json:"plan,omitempty"`
	Outcome         string   `json:"outcome,omitempty"`
	KeyLessons      []string `json:"key_lessons,omitempty"`
}

// ReportFailureAnalysisArgs is report_failure_analysis's argument struct,
// structurally identical to the success variant — the distinction the LLM
// makes is which tool it calls, not a shape difference.
type ReportFailureAnalysisArgs struct {
	IsWorthLearning bool     `json:"is_worth_learning"`
	SkipReason      string   `json:"skip_reason,omitempty"`
	Goal            string   `json:"goal,omitempty"`
	Plan            string   `json:"plan,omitempty"`
	Outcome         string   `json:"outcome,omitempty"`
	KeyLessons      []string `json:"key_lessons,omitempty"`
}

const (
	ToolReportSuccessAnalysis = "report_success_analysis"
	ToolReportFailureAnalysis = "report_failure_analysis"
)

func distillationToolDefs() []llm.ToolDef {
	return []llm.ToolDef{
		{
			Name:        ToolReportSuccessAnalysis,
			Description: "Report a structured analysis of a task that finished successfully.",
			Args:        ReportSuccessAnalysisArgs{},
		},
		{
			Name:        ToolReportFailureAnalysis,
			Description: "Report a structured analysis of a task that finished with a failure.",
			Args:        ReportFailureAnalysisArgs{},
		},
	}
}

// DistillationOutcome is the tagged union over {success analysis, failure
// analysis, triviality skip} produced by parsing the distiller's single
// tool call.
type DistillationOutcome struct {
	Trivial    bool
	SkipReason string
	Failed     bool
	Goal       string
	Plan       string
	Outcome    string
	KeyLessons []string
}

// Distilled renders the outcome into the packed text carried on
// skill-learn-distilled — "verbatim" text the Skill-Learn Agent's prompt
// later quotes under "## Task Analysis".
func (o DistillationOutcome) Distilled() string {
	var b strings.Builder
	if o.Failed {
		b.WriteString("Task outcome: failed\n")
	} else {
		b.WriteString("Task outcome: success\n")
	}
	fmt.Fprintf(&b, "Goal: %s\n", o.Goal)
	fmt.Fprintf(&b, "Plan: %s\n", o.Plan)
	fmt.Fprintf(&b, "Outcome: %s\n", o.Outcome)
	if len(o.KeyLessons) > 0 {
		b.WriteString("Key lessons:\n")
		for _, l := range o.KeyLessons {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}
	return b.String()
}

// Distiller is the Skill-Learn Distiller.
type Distiller struct {
	DB              *storage.Gateway
	LLM             *llm.Client
	MQ              *mq.Bus
	DefaultProvider llm.Provider
	DefaultModel    string
}

// HandleSkillLearnTask is the skill-learn-task topic handler.
func (d *Distiller) HandleSkillLearnTask(ctx context.Context, payload []byte, _ map[string]string) error {
	var body SkillLearnTaskBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("skilllearn: decode skill-learn-task: %w", err)
	}
	return d.process(ctx, body)
}

// process implements spec.md §4.4's algorithm.
func (d *Distiller) process(ctx context.Context, body SkillLearnTaskBody) error {
	learningSpaceID, err := d.DB.Sessions.LearningSpaceID(ctx, body.SessionID)
	if err != nil {
		return fmt.Errorf("skilllearn: lookup learning space: %w", err)
	}
	if learningSpaceID == "" {
		return nil
	}

	task, err := d.DB.Tasks.Get(ctx, body.TaskID)
	if err != nil {
		return fmt.Errorf("skilllearn: get task: %w", err)
	}
	messages, err := d.DB.Messages.ListBySession(ctx, body.SessionID)
	if err != nil {
		return fmt.Errorf("skilllearn: list messages: %w", err)
	}
	bound := boundMessages(task, messages)

	toolSchemas, err := llm.ToToolSchemas(distillationToolDefs())
	if err != nil {
		return fmt.Errorf("skilllearn: build distillation tool schemas: %w", err)
	}

	resp, err := d.LLM.Complete(ctx, llm.Request{
		Provider: d.DefaultProvider,
		Model:    d.DefaultModel,
		Messages: buildDistillationPrompt(task, bound),
		Tools:    toolSchemas,
	})
	if err != nil {
		return fmt.Errorf("skilllearn: distillation completion: %w", err)
	}

	outcome, err := parseDistillationOutcome(resp)
	if err != nil {
		return fmt.Errorf("skilllearn: parse distillation outcome: %w", err)
	}

	if outcome.Trivial {
		event.Publish(event.Event{Type: event.SkillDistilled, Data: event.SkillDistilledData{
			TaskID: body.TaskID, LearningSpaceID: learningSpaceID, Trivial: true,
		}})
		return nil
	}

	event.Publish(event.Event{Type: event.SkillDistilled, Data: event.SkillDistilledData{
		TaskID: body.TaskID, LearningSpaceID: learningSpaceID, Trivial: false,
	}})

	out := SkillLearnDistilledBody{
		ProjectID:         body.ProjectID,
		SessionID:         body.SessionID,
		TaskID:            body.TaskID,
		LearningSpaceID:   learningSpaceID,
		DistilledContext:  outcome.Distilled(),
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("skilllearn: marshal skill-learn-distilled: %w", err)
	}
	return d.MQ.Publish(ctx, mq.TopicSkillLearnDistilled, payload, nil)
}

func boundMessages(task *types.Task, all []*types.Message) []*types.Message {
	set := make(map[string]bool, len(task.RawMessageIDs))
	for _, id := range task.RawMessageIDs {
		set[id] = true
	}
	var out []*types.Message
	for _, m := range all {
		if set[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

func buildDistillationPrompt(task *types.Task, bound []*types.Message) []*schema.Message {
	var b strings.Builder
	b.WriteString("You are distilling a completed task into a structured learning record. ")
	b.WriteString("Call report_success_analysis or report_failure_analysis exactly once, matching the task's actual status. ")
	b.WriteString("If the task is too trivial to be worth learning from, set is_worth_learning=false with a skip_reason.\n\n")
	fmt.Fprintf(&b, "Task status: %s\n", task.Status)
	fmt.Fprintf(&b, "Task description: %s\n", task.Data.TaskDescription)
	if len(task.Data.UserPreferences) > 0 {
		b.WriteString("User preferences:\n")
		for _, p := range task.Data.UserPreferences {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	if task.Data.SopThinking != "" {
		fmt.Fprintf(&b, "SOP thinking: %s\n", task.Data.SopThinking)
	}
	if len(task.Data.Progresses) > 0 {
		b.WriteString("Progress log:\n")
		for _, p := range task.Data.Progresses {
			fmt.Fprintf(&b, "- %s\n", p.Note)
		}
	}
	b.WriteString("\nMessage transcript:\n")
	for _, m := range bound {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, renderPartsText(m.Parts))
	}

	return []*schema.Message{
		schema.SystemMessage("You distill completed tasks into reusable lessons for a skill library."),
		schema.UserMessage(b.String()),
	}
}

func renderPartsText(parts []types.Part) string {
	var b strings.Builder
	for _, p := range parts {
		switch p.Type {
		case types.PartText:
			b.WriteString(p.Text)
		case types.PartToolCall:
			fmt.Fprintf(&b, "[called %s]", p.ToolName)
		case types.PartToolResult:
			fmt.Fprintf(&b, "[result: %s]", p.ToolOutput)
		}
	}
	return b.String()
}

func parseDistillationOutcome(resp *schema.Message) (DistillationOutcome, error) {
	if len(resp.ToolCalls) == 0 {
		return DistillationOutcome{}, fmt.Errorf("distiller returned no tool call")
	}
	call := resp.ToolCalls[0]

	switch call.Function.Name {
	case ToolReportSuccessAnalysis:
		var args ReportSuccessAnalysisArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return DistillationOutcome{}, fmt.Errorf("unmarshal success analysis args: %w", err)
		}
		return DistillationOutcome{
			Trivial:    !args.IsWorthLearning,
			SkipReason: args.SkipReason,
			Failed:     false,
			Goal:       args.Goal,
			Plan:       args.Plan,
			Outcome:    args.Outcome,
			KeyLessons: args.KeyLessons,
		}, nil
	case ToolReportFailureAnalysis:
		var args ReportFailureAnalysisArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return DistillationOutcome{}, fmt.Errorf("unmarshal failure analysis args: %w", err)
		}
		return DistillationOutcome{
			Trivial:    !args.IsWorthLearning,
			SkipReason: args.SkipReason,
			Failed:     true,
			Goal:       args.Goal,
			Plan:       args.Plan,
			Outcome:    args.Outcome,
			KeyLessons: args.KeyLessons,
		}, nil
	default:
		return DistillationOutcome{}, fmt.Errorf("distiller called unknown tool %q", call.Function.Name)
	}
}
