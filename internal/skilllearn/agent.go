package skilllearn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/acontext-run/runtime/internal/apierr"
	"github.com/acontext-run/runtime/internal/config"
	"github.com/acontext-run/runtime/internal/coordination"
	"github.com/acontext-run/runtime/internal/llm"
	"github.com/acontext-run/runtime/internal/mq"
	"github.com/acontext-run/runtime/internal/storage"
	"github.com/acontext-run/runtime/pkg/types"
)

// Agent is the Skill-Learn Agent: it consumes skill-learn-distilled,
// holds a per-learning-space lock for the duration of the run, and
// dispatches tool calls against the skill library inside one transaction
// per iteration — the same loop shape as taskagent.Agent, generalized from
// task bucketing to skill-library mutation (spec.md §4.5).
type Agent struct {
	DB              *storage.Gateway
	Coord           *coordination.Store
	LLM             *llm.Client
	MQ              *mq.Bus
	DefaultProvider llm.Provider
	DefaultModel    string
	Defaults        types.ProjectConfig
}

// HandleSkillLearnDistilled is the skill-learn-distilled topic handler.
func (a *Agent) HandleSkillLearnDistilled(ctx context.Context, payload []byte, _ map[string]string) error {
	var body SkillLearnDistilledBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("skilllearn: decode skill-learn-distilled: %w", err)
	}
	return a.process(ctx, body)
}

func (a *Agent) process(ctx context.Context, body SkillLearnDistilledBody) error {
	project, err := a.DB.Projects.Get(ctx, body.ProjectID)
	if err != nil {
		return fmt.Errorf("skilllearn: get project: %w", err)
	}
	cfg := config.ResolveProjectConfig(a.Defaults, project.Config)

	ttl := time.Duration(cfg.LearnLockTTLSeconds) * time.Second
	token := uuid.NewString()

	if err := a.Coord.CheckLearnLockOrSet(ctx, body.LearningSpaceID, token, ttl); err != nil {
		if errors.Is(err, coordination.ErrLockHeld) {
			return a.republish(ctx, body)
		}
		return fmt.Errorf("skilllearn: acquire learn lock: %w", err)
	}
	defer func() {
		if err := a.Coord.ReleaseLearnLock(context.Background(), body.LearningSpaceID, token); err != nil {
			_ = err
		}
	}()

	return a.run(ctx, body, cfg)
}

func (a *Agent) republish(ctx context.Context, body SkillLearnDistilledBody) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("skilllearn: marshal skill-learn-distilled: %w", err)
	}
	return a.MQ.Publish(ctx, mq.TopicSkillLearnDistilled, payload, nil)
}

// run drives the LLM tool-calling loop: one open transaction per
// iteration, rolled back whole on any tool rejection, with the skill
// context rebuilt in place whenever a tool mutates the skill list.
func (a *Agent) run(ctx context.Context, body SkillLearnDistilledBody, cfg types.ProjectConfig) error {
	toolSchemas, err := llm.ToToolSchemas(ToolDefs())
	if err != nil {
		return apierr.Fatal("build skill agent tool schemas", err)
	}

	var history []*schema.Message
	maxIterations := cfg.SkillAgentMaxIterations

	for iteration := 0; ; iteration++ {
		if iteration >= maxIterations {
			return apierr.Fatal(fmt.Sprintf("skill agent exceeded %d iterations without finishing", maxIterations), nil)
		}

		var finished, noToolCalls bool

		commitErr := a.DB.WithTx(ctx, func(ctx context.Context, tx *storage.Tx) error {
			sc, err := BuildSkillCtx(ctx, tx, body.ProjectID, body.LearningSpaceID)
			if err != nil {
				return apierr.Fatal("build skill context", err)
			}

			msgs := []*schema.Message{schema.SystemMessage(renderAgentSystemPrompt())}
			if iteration == 0 {
				msgs = append(msgs, schema.UserMessage(renderSeedPrompt(body.DistilledContext, sc)))
			}
			msgs = append(msgs, history...)

			resp, err := a.LLM.Complete(ctx, llm.Request{
				Provider: a.DefaultProvider,
				Model:    a.DefaultModel,
				Messages: msgs,
				Tools:    toolSchemas,
			})
			if err != nil {
				return apierr.Transient("skill agent LLM completion failed", err)
			}

			if len(resp.ToolCalls) == 0 {
				noToolCalls = true
				return nil
			}
			history = append(history, assistantToolCallMessage(resp))

			for _, call := range resp.ToolCalls {
				outcome, rerr := dispatchTool(ctx, sc, call.Function.Name, marshalArgs(call.Function.Arguments))
				if rerr != nil {
					return rerr
				}
				history = append(history, toolResultMessage(call.ID, outcome.ResultText))

				if outcome.RefreshSkills {
					rebuilt, err := BuildSkillCtx(ctx, tx, body.ProjectID, body.LearningSpaceID)
					if err != nil {
						return apierr.Fatal("rebuild skill context", err)
					}
					sc = rebuilt
				}
				if outcome.Finished {
					finished = true
				}
			}
			return nil
		})

		if commitErr != nil {
			var aerr *apierr.Error
			if errors.As(commitErr, &aerr) {
				return aerr
			}
			return apierr.Fatal("skill agent iteration failed", commitErr)
		}

		if finished || noToolCalls {
			return nil
		}
	}
}

func renderAgentSystemPrompt() string {
	return "You maintain a project's library of reusable skills. Read the task analysis, " +
		"decide whether it should become a new skill or update an existing one, make the " +
		"change with the available tools, then call finish. Call report_thinking before any " +
		"mutating tool call to explain your reasoning."
}

func renderSeedPrompt(distilledContext string, sc *SkillCtx) string {
	var b strings.Builder
	b.WriteString("## Task Analysis\n")
	b.WriteString(distilledContext)
	b.WriteString("\n## Available Skills\n")
	b.WriteString(sc.RenderAvailableSkills())
	return b.String()
}

func assistantToolCallMessage(resp *schema.Message) *schema.Message {
	return resp
}

func toolResultMessage(toolCallID, content string) *schema.Message {
	return &schema.Message{
		Role:       schema.Tool,
		Content:    content,
		ToolCallID: toolCallID,
	}
}

// marshalArgs re-encodes a tool call's arguments as json.RawMessage,
// tolerating eino's string-encoded Arguments field.
func marshalArgs(raw string) json.RawMessage {
	if raw == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(raw)
}
