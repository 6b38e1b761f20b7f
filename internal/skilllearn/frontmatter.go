package skilllearn

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/acontext-run/runtime/pkg/types"
)

const frontMatterDelim = "---"

// ParseFrontMatter splits a SKILL.md document into its YAML front matter
// and body. The front matter is the authoritative source for a skill's
// Name/Description (spec.md §3); callers re-sanitize Name themselves.
func ParseFrontMatter(content string) (types.SkillFrontMatter, string, error) {
	lines := strings.Split(content, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != frontMatterDelim {
		return types.SkillFrontMatter{}, "", fmt.Errorf("skilllearn: SKILL.md missing front matter delimiter")
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterDelim {
			end = i
			break
		}
	}
	if end == -1 {
		return types.SkillFrontMatter{}, "", fmt.Errorf("skilllearn: SKILL.md front matter not closed")
	}

	var fm types.SkillFrontMatter
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &fm); err != nil {
		return types.SkillFrontMatter{}, "", fmt.Errorf("skilllearn: parse SKILL.md front matter: %w", err)
	}
	body := strings.TrimPrefix(strings.Join(lines[end+1:], "\n"), "\n")
	return fm, body, nil
}

// RenderFrontMatter re-assembles a SKILL.md document from front matter and
// body, the inverse of ParseFrontMatter.
func RenderFrontMatter(fm types.SkillFrontMatter, body string) (string, error) {
	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("skilllearn: render SKILL.md front matter: %w", err)
	}
	var b strings.Builder
	b.WriteString(frontMatterDelim + "\n")
	b.Write(fmBytes)
	b.WriteString(frontMatterDelim + "\n")
	b.WriteString(body)
	return b.String(), nil
}
