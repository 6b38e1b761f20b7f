package event

import "github.com/acontext-run/runtime/pkg/types"

// These are in-process domain-event taps layered over the durable MQ
// topics in internal/mq: tests and metrics subscribe here to observe
// pipeline progress without consuming from (and acking) the real queue.

// MessageIngestedData is the data for message.ingested events. No code in
// this repository publishes a message.ingested event.
type MessageIngestedData struct {
	Message *types.Message `json:"message"`
}

// TaskCreatedData is the data for task.created events, published by the
// Task Agent's insert_task tool handler as soon as the row is written,
// before the iteration's transaction commits; the event is not withdrawn
// if that transaction later rolls back.
type TaskCreatedData struct {
	Task *types.Task `json:"task"`
}

// TaskUpdatedData is the data for task.updated events, published by the
// update_task handler when it writes a status or data change, before the
// iteration's transaction commits.
type TaskUpdatedData struct {
	Task *types.Task `json:"task"`
}

// TaskStatusTransitionData is the data for task.status_transitioned events,
// published only for the success/failed terminal transitions that also
// trigger a skill-learn-task publish.
type TaskStatusTransitionData struct {
	Task     *types.Task     `json:"task"`
	Previous types.TaskStatus `json:"previous"`
}

// SkillDistilledData is the data for skill.distilled events, published by
// the Skill-Learn Distiller after report_success_analysis/
// report_failure_analysis resolves.
type SkillDistilledData struct {
	TaskID          string `json:"task_id"`
	LearningSpaceID string `json:"learning_space_id"`
	Trivial         bool   `json:"trivial"`
}

// SkillLearnedData is the data for skill.learned events, published by the
// Skill-Learn Agent's create_skill tool handler.
type SkillLearnedData struct {
	LearningSpaceID string   `json:"learning_space_id"`
	SkillNames      []string `json:"skill_names"`
}
