package types

import "encoding/json"

// TaskProcessStatus tracks whether a message has been bucketed into a task
// by the Task Agent yet. Transitions pending -> {success, failed} and never
// back, mirrored on spec's session_task_process_status field.
type TaskProcessStatus string

const (
	TaskProcessPending TaskProcessStatus = "pending"
	TaskProcessSuccess TaskProcessStatus = "success"
	TaskProcessFailed  TaskProcessStatus = "failed"
)

// Message is a single turn in a session. Content is a provider-agnostic
// part list; codec implementations translate it to/from OpenAI/Anthropic
// wire shapes.
type Message struct {
	ID                     string            `json:"id"`
	SessionID              string            `json:"session_id"`
	Role                   string            `json:"role"` // "user" | "assistant" | "tool"
	Parts                  []Part            `json:"parts"`
	ModelParams            *ModelParams      `json:"model_params,omitempty"`
	SessionTaskProcessStatus TaskProcessStatus `json:"session_task_process_status"`
	Created                int64             `json:"created"`
}

// ModelParams selects the LLM provider/model for Task Agent turns spawned
// from this message. The Skill-Learn Distiller and Agent do not read it;
// they always use the server's default provider and model.
type ModelParams struct {
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Part is one piece of a message's content. Kept as a closed tagged union
// (text / file / tool_call / tool_result) rather than an open interface,
// since the wire codecs need to switch on concrete shape deterministically.
type Part struct {
	Type       PartType        `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
	ToolOutput string          `json:"tool_output,omitempty"`
	ToolError  bool            `json:"tool_error,omitempty"`

	// File part fields (Type == PartFile). The bytes themselves are never
	// inlined here; ArtifactPath locates the disk artifact the HTTP layer
	// wrote them to (internal/storage's DiskRepo), addressed by SHA256.
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	SHA256       string `json:"sha256,omitempty"`
	Size         int64  `json:"size,omitempty"`
	ArtifactPath string `json:"artifact_path,omitempty"`
}

// PartType discriminates Part's tagged-union content.
type PartType string

const (
	PartText       PartType = "text"
	PartFile       PartType = "file"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
)

// IsFile reports whether p carries an uploaded file reference.
func (p Part) IsFile() bool { return p.Type == PartFile }

// IsToolCall reports whether p carries a pending tool invocation.
func (p Part) IsToolCall() bool { return p.Type == PartToolCall }

// IsToolResult reports whether p carries a tool's returned output.
func (p Part) IsToolResult() bool { return p.Type == PartToolResult }
