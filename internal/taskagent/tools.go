package taskagent

import "github.com/acontext-run/runtime/internal/llm"

// InsertTaskArgs is insert_task's argument struct: inserts a new task
// immediately after afterTaskOrder, renumbering trailing tasks.
type InsertTaskArgs struct {
	AfterTaskOrder  int    `json:"after_task_order" jsonschema:"description=Existing task order to insert after; 0 inserts at the front of the session"`
	TaskDescription string `json:"task_description" jsonschema:"description=Short description of the work this task bucket covers"`
}

// AppendMessagesArgs is append_messages_to_task's argument struct: binds
// pending messages to an existing task and marks them processed.
type AppendMessagesArgs struct {
	TaskOrder  int      `json:"task_order" jsonschema:"description=Order of the task to attach messages to"`
	MessageIDs []string `json:"message_ids" jsonschema:"description=Pending message ids to bucket into this task"`
}

// AppendTaskProgressArgs is append_task_progress's argument struct.
type AppendTaskProgressArgs struct {
	TaskOrder    int    `json:"task_order"`
	ProgressText string `json:"progress_text" jsonschema:"description=One incremental progress note to append to the task's progress log"`
}

// SubmitUserPreferenceArgs is submit_user_preference's argument struct.
type SubmitUserPreferenceArgs struct {
	TaskOrder      int    `json:"task_order"`
	PreferenceText string `json:"preference_text" jsonschema:"description=A user preference observed during this task, captured for later reuse"`
}

// UpdateTaskArgs is update_task's argument struct. Status transitions
// among pending/running/success/failed (spec.md §4.7); TaskDescription is
// optional and only overwrites the running description when set.
type UpdateTaskArgs struct {
	TaskOrder       int    `json:"task_order"`
	Status          string `json:"status" jsonschema:"enum=pending,enum=running,enum=success,enum=failed"`
	TaskDescription string `json:"task_description,omitempty" jsonschema:"description=Optional replacement for the task's running description"`
}

// FinishArgs is finish's (empty) argument struct: the agent exits its loop.
type FinishArgs struct{}

// ReportThinkingArgs is report_thinking's argument struct: a streamed
// thought, required at least once per iteration that issues other tool
// calls (gates duplicate-reporting suppression upstream).
type ReportThinkingArgs struct {
	Text string `json:"text"`
}

// toolNames, in the fixed palette order spec.md §4.3 names them.
const (
	ToolInsertTask             = "insert_task"
	ToolAppendMessagesToTask   = "append_messages_to_task"
	ToolAppendTaskProgress     = "append_task_progress"
	ToolSubmitUserPreference   = "submit_user_preference"
	ToolUpdateTask             = "update_task"
	ToolFinish                 = "finish"
	ToolReportThinking         = "report_thinking"
)

// ToolDefs returns the Task Agent's fixed tool palette, in spec order, for
// schema reflection (internal/llm.ToToolSchemas flattens each's $ref/$defs).
func ToolDefs() []llm.ToolDef {
	return []llm.ToolDef{
		{
			Name:        ToolInsertTask,
			Description: "Insert a new task immediately after the given task order, renumbering trailing tasks. Use when incoming messages start work unrelated to the current task.",
			Args:        InsertTaskArgs{},
		},
		{
			Name:        ToolAppendMessagesToTask,
			Description: "Bind one or more pending messages to an existing task by order, marking them processed.",
			Args:        AppendMessagesArgs{},
		},
		{
			Name:        ToolAppendTaskProgress,
			Description: "Append an incremental progress note to a task.",
			Args:        AppendTaskProgressArgs{},
		},
		{
			Name:        ToolSubmitUserPreference,
			Description: "Record a user preference observed while working this task, for reuse in future tasks.",
			Args:        SubmitUserPreferenceArgs{},
		},
		{
			Name:        ToolUpdateTask,
			Description: "Transition a task's status (pending/running/success/failed) and optionally update its description.",
			Args:        UpdateTaskArgs{},
		},
		{
			Name:        ToolFinish,
			Description: "Call when no further tool calls are needed this turn; ends the agent loop.",
			Args:        FinishArgs{},
		},
		{
			Name:        ToolReportThinking,
			Description: "Stream a short thought describing what you are about to do. Must be called at least once per iteration that makes other tool calls.",
			Args:        ReportThinkingArgs{},
		},
	}
}
