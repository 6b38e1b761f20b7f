// Package types provides the core data model for the acontext runtime:
// projects, sessions, messages, tasks, disks, agent skills, learning spaces
// and sandbox logs.
package types

// Project is the top-level tenant boundary. Every session, disk and skill
// belongs to exactly one project.
type Project struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	SecretDigest string       `json:"-"` // sha256(pepper || secret), never serialized
	Config       ProjectConfig `json:"config"`
	Time         ProjectTime  `json:"time"`
}

// ProjectTime contains project timestamps, in unix milliseconds.
type ProjectTime struct {
	Created int64  `json:"created"`
	Updated int64  `json:"updated"`
}

// ProjectConfig carries the buffer-controller thresholds and lock/retry
// tunables a project can override; zero values fall back to server defaults
// (see internal/config.DefaultProjectConfig).
type ProjectConfig struct {
	MaxTurns                       int  `json:"max_turns,omitempty"`
	MaxOverflow                     int  `json:"max_overflow,omitempty"`
	TTLSeconds                      int  `json:"ttl_seconds,omitempty"`
	SessionLockTTLSeconds            int  `json:"session_lock_ttl_seconds,omitempty"`
	LearnLockTTLSeconds              int  `json:"learn_lock_ttl_seconds,omitempty"`
	SessionMessageFlushMaxRetries    int  `json:"session_message_flush_max_retries,omitempty"`
	SessionLockWaitSeconds           int  `json:"session_lock_wait_seconds,omitempty"`
	EnableSkillLearning              bool `json:"enable_skill_learning"`
	LLMIterationDeadlineSeconds       int  `json:"llm_iteration_deadline_seconds,omitempty"`
	TaskAgentMaxIterations           int  `json:"task_agent_max_iterations,omitempty"`
	SkillAgentMaxIterations           int  `json:"skill_agent_max_iterations,omitempty"`
}
