package types

// Session is a conversational thread within a project. A session may be
// linked to a LearningSpace via a junction row, in which case completed
// tasks feed the skill-learning pipeline.
type Session struct {
	ID                  string      `json:"id"`
	ProjectID           string      `json:"project_id"`
	Title               string      `json:"display_title"`
	DisableTaskTracking bool        `json:"disable_task_tracking"`
	Time                SessionTime `json:"time"`
}

// SessionTime contains session timestamps, in unix milliseconds.
type SessionTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// EditStrategy selects how GET /sessions/{id}/messages trims a transcript
// to fit a token budget.
type EditStrategy string

const (
	EditStrategyNone      EditStrategy = "none"
	EditStrategyMiddleOut EditStrategy = "middle_out"
)

// MessageFormat selects the wire codec used to render a transcript.
type MessageFormat string

const (
	FormatAcontext MessageFormat = "acontext"
	FormatOpenAI   MessageFormat = "openai"
	FormatAnthropic MessageFormat = "anthropic"
)
