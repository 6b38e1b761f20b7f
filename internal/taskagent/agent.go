package taskagent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/acontext-run/runtime/internal/apierr"
	"github.com/acontext-run/runtime/internal/llm"
	"github.com/acontext-run/runtime/internal/mq"
	"github.com/acontext-run/runtime/internal/storage"
	"github.com/acontext-run/runtime/pkg/types"
)

// Agent is the Task Agent: it materializes a TaskCtx, calls the LLM with
// the fixed tool palette, and dispatches tool calls inside one transaction
// per iteration (spec.md §4.3). It publishes skill-learn-task after the
// whole run completes, never from inside a transaction, so a publish
// failure never rolls back committed task work.
type Agent struct {
	DB              *storage.Gateway
	LLM             *llm.Client
	MQ              *mq.Bus
	DefaultProvider llm.Provider
	DefaultModel    string
}

// Result is what one Run call produces: nothing client-visible (agents run
// behind the async message-accept API, spec.md §1 Non-goals), just the set
// of tasks that crossed into a terminal status this run, for the caller to
// drain into skill-learn-task publishes.
type Result struct {
	TerminalTaskIDs []string
}

// Run absorbs pending, the ordered pending messages for sessionID, into
// the session's task list. Each LLM iteration runs inside its own
// transaction; a business rejection from any tool call rolls back that
// iteration's writes and ends the run without retrying (the caller/consumer
// must not retry in-process — a future message or timer re-drives it).
func (a *Agent) Run(ctx context.Context, projectID, sessionID string, pending []*types.Message, cfg types.ProjectConfig) (*Result, error) {
	toolSchemas, err := llm.ToToolSchemas(ToolDefs())
	if err != nil {
		return nil, apierr.Fatal("build task agent tool schemas", err)
	}

	provider, model := resolveModelParams(pending, a.DefaultProvider, a.DefaultModel)

	maxIterations := cfg.TaskAgentMaxIterations
	if maxIterations <= 0 {
		maxIterations = 16
	}
	var deadline time.Duration
	if cfg.LLMIterationDeadlineSeconds > 0 {
		deadline = time.Duration(cfg.LLMIterationDeadlineSeconds) * time.Second
	}

	var history []*schema.Message
	var learningTaskIDs []string

	for iteration := 0; ; iteration++ {
		if iteration >= maxIterations {
			return &Result{TerminalTaskIDs: learningTaskIDs}, apierr.Fatal(fmt.Sprintf("task agent exceeded %d iterations without finishing", maxIterations), nil)
		}

		var stepTerminalIDs []string
		var finished, noToolCalls bool

		commitErr := a.DB.WithTx(ctx, func(ctx context.Context, tx *storage.Tx) error {
			taskCtx, err := BuildTaskCtx(ctx, tx, projectID, sessionID)
			if err != nil {
				return apierr.Fatal("build task context", err)
			}

			msgs := []*schema.Message{schema.SystemMessage(renderSystemPrompt(taskCtx))}
			for _, m := range pending {
				msgs = append(msgs, toEinoMessage(m))
			}
			msgs = append(msgs, history...)

			iterCtx := ctx
			if deadline > 0 {
				var cancel context.CancelFunc
				iterCtx, cancel = context.WithTimeout(ctx, deadline)
				defer cancel()
			}

			resp, err := a.LLM.Complete(iterCtx, llm.Request{
				Provider: provider,
				Model:    model,
				Messages: msgs,
				Tools:    toolSchemas,
			})
			if err != nil {
				return apierr.Transient("task agent LLM completion failed", err)
			}

			if len(resp.ToolCalls) == 0 {
				noToolCalls = true
				return nil
			}

			history = append(history, assistantToolCallMessage(resp))

			for _, call := range resp.ToolCalls {
				outcome, rerr := dispatchTool(ctx, taskCtx, call.Function.Name, marshalArgs(call.Function.Arguments))
				if rerr != nil {
					return rerr
				}
				history = append(history, toolResultMessage(call.ID, outcome.ResultText))

				if outcome.Rebuild {
					rebuilt, err := BuildTaskCtx(ctx, tx, projectID, sessionID)
					if err != nil {
						return apierr.Fatal("rebuild task context", err)
					}
					taskCtx = rebuilt
				}
				if outcome.TerminalTaskID != "" {
					stepTerminalIDs = append(stepTerminalIDs, outcome.TerminalTaskID)
				}
				if outcome.Finished {
					finished = true
				}
			}
			return nil
		})

		if commitErr != nil {
			if aerr, ok := commitErr.(*apierr.Error); ok {
				return &Result{TerminalTaskIDs: learningTaskIDs}, aerr
			}
			return &Result{TerminalTaskIDs: learningTaskIDs}, apierr.Fatal("task agent iteration failed", commitErr)
		}

		learningTaskIDs = append(learningTaskIDs, stepTerminalIDs...)
		if finished || noToolCalls {
			break
		}
	}

	return &Result{TerminalTaskIDs: learningTaskIDs}, nil
}

// DrainLearningTasks publishes skill-learn-task for every terminal task id
// produced by a completed run, but only for sessions linked to a learning
// space with skill learning enabled (spec.md §4.3's post-commit drain —
// deliberately outside any DB transaction).
func (a *Agent) DrainLearningTasks(ctx context.Context, projectID, sessionID string, cfg types.ProjectConfig, terminalTaskIDs []string) error {
	if !cfg.EnableSkillLearning || len(terminalTaskIDs) == 0 {
		return nil
	}
	learningSpaceID, err := a.DB.Sessions.LearningSpaceID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("taskagent: lookup learning space: %w", err)
	}
	if learningSpaceID == "" {
		return nil
	}

	for _, taskID := range terminalTaskIDs {
		body, err := json.Marshal(map[string]string{
			"project_id": projectID,
			"session_id": sessionID,
			"task_id":    taskID,
		})
		if err != nil {
			return fmt.Errorf("taskagent: marshal skill-learn-task body: %w", err)
		}
		if err := a.MQ.Publish(ctx, mq.TopicSkillLearnTask, body, nil); err != nil {
			return fmt.Errorf("taskagent: publish skill-learn-task: %w", err)
		}
	}
	return nil
}

// resolveModelParams picks the provider/model from the most recent pending
// message that carries one, falling back to the agent's configured
// defaults — mirroring the teacher's lastMsg.Model selection in
// internal/session/loop.go.
func resolveModelParams(pending []*types.Message, defaultProvider llm.Provider, defaultModel string) (llm.Provider, string) {
	for i := len(pending) - 1; i >= 0; i-- {
		if mp := pending[i].ModelParams; mp != nil && mp.Provider != "" {
			return llm.Provider(mp.Provider), mp.Model
		}
	}
	return defaultProvider, defaultModel
}
