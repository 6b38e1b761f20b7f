package skilllearn

import "github.com/acontext-run/runtime/internal/llm"

// GetSkillArgs is get_skill's argument struct: looks up a skill by name,
// suggesting a near match on miss.
type GetSkillArgs struct {
	Name string `json:"name" jsonschema:"description=Sanitized or human-readable skill name to look up"`
}

// GetSkillFileArgs is get_skill_file's argument struct.
type GetSkillFileArgs struct {
	SkillName string `json:"skill_name"`
	FilePath  string `json:"file_path" jsonschema:"description=POSIX-style path relative to the skill's disk, e.g. /SKILL.md"`
}

// CreateSkillArgs is create_skill's argument struct: the full SKILL.md
// content, front matter and body together.
type CreateSkillArgs struct {
	SkillMDContent string `json:"skill_md_content" jsonschema:"description=Full SKILL.md content including YAML front matter with name and description"`
}

// CreateSkillFileArgs is create_skill_file's argument struct.
type CreateSkillFileArgs struct {
	SkillName string `json:"skill_name"`
	FilePath  string `json:"file_path"`
	Content   string `json:"content"`
}

// StrReplaceSkillFileArgs is str_replace_skill_file's argument struct: the
// old string must match exactly once in the target file.
type StrReplaceSkillFileArgs struct {
	SkillName string `json:"skill_name"`
	FilePath  string `json:"file_path"`
	OldString string `json:"old_string"`
	NewString string `json:"new_string"`
}

// DeleteSkillFileArgs is delete_skill_file's argument struct.
type DeleteSkillFileArgs struct {
	SkillName string `json:"skill_name"`
	FilePath  string `json:"file_path"`
}

// ReportThinkingArgs is report_thinking's argument struct.
type ReportThinkingArgs struct {
	Text string `json:"text"`
}

// FinishArgs is finish's (empty) argument struct.
type FinishArgs struct{}

const (
	ToolGetSkill            = "get_skill"
	ToolGetSkillFile        = "get_skill_file"
	ToolCreateSkill         = "create_skill"
	ToolCreateSkillFile     = "create_skill_file"
	ToolStrReplaceSkillFile = "str_replace_skill_file"
	ToolDeleteSkillFile     = "delete_skill_file"
	ToolReportThinking      = "report_thinking"
	ToolFinish              = "finish"
)

// ToolDefs returns the Skill-Learn Agent's fixed 8-tool palette, in spec
// order.
func ToolDefs() []llm.ToolDef {
	return []llm.ToolDef{
		{Name: ToolGetSkill, Description: "Look up an existing skill by name.", Args: GetSkillArgs{}},
		{Name: ToolGetSkillFile, Description: "Read a file from an existing skill's disk.", Args: GetSkillFileArgs{}},
		{Name: ToolCreateSkill, Description: "Create a new skill from a full SKILL.md document (front matter + body).", Args: CreateSkillArgs{}},
		{Name: ToolCreateSkillFile, Description: "Create or overwrite a file on an existing skill's disk.", Args: CreateSkillFileArgs{}},
		{Name: ToolStrReplaceSkillFile, Description: "Replace one exact occurrence of old_string with new_string in a skill file.", Args: StrReplaceSkillFileArgs{}},
		{Name: ToolDeleteSkillFile, Description: "Delete a file from a skill's disk.", Args: DeleteSkillFileArgs{}},
		{Name: ToolReportThinking, Description: "Stream a short thought describing what you are about to do.", Args: ReportThinkingArgs{}},
		{Name: ToolFinish, Description: "Call when no further tool calls are needed this turn; ends the agent loop.", Args: FinishArgs{}},
	}
}
