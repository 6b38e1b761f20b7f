package types

import (
	"regexp"
	"strings"
)

// skillNamePattern is the sanitized-name charset: lowercase ascii, digits
// and hyphens, matching the directory-safe slug the disk layout requires.
var skillNamePattern = regexp.MustCompile(`[^a-z0-9-]+`)

// SanitizeSkillName lowercases name, replaces runs of non-slug characters
// with a single hyphen, and trims leading/trailing hyphens. The result is
// used both as the skill's canonical Name and as its directory name on the
// backing Disk.
func SanitizeSkillName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	slug := skillNamePattern.ReplaceAllString(lower, "-")
	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return slug
}

// AgentSkill is a named, versioned capability learned for a project. Its
// SKILL.md file (on DiskID) is the authoritative source of Name/Description
// via YAML front matter; the row is a queryable index over it.
type AgentSkill struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id"`
	DiskID      string   `json:"disk_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	FilePaths   []string `json:"file_paths"`
	Created     int64    `json:"created"`
	Updated     int64    `json:"updated"`
}

// SkillFrontMatter is the YAML front matter block at the top of a
// SKILL.md file. It is the authoritative source for Name/Description;
// the AgentSkill row is re-derived from it whenever the file changes.
type SkillFrontMatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// LearningSpace groups one or more sessions under a shared skill library
// for a project, via a session<->learning-space junction table.
type LearningSpace struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	DiskID    string `json:"disk_id"`
	Name      string `json:"name"`
	Created   int64  `json:"created"`
}
