package skilllearn

import (
	"context"
	"fmt"

	"github.com/acontext-run/runtime/internal/storage"
	"github.com/acontext-run/runtime/pkg/types"
)

// SkillCtx is the Skill-Learn Agent's per-iteration working set: the
// learning space's currently loaded skills, indexed by name, rebuilt
// within the same open transaction after any create_skill call — the same
// stale-on-mutation/rebuild-in-place discipline as taskagent.TaskCtx.
type SkillCtx struct {
	Tx              *storage.Tx
	ProjectID       string
	LearningSpaceID string

	skillsByName map[string]*types.AgentSkill
	names        []string
}

// BuildSkillCtx loads a fresh SkillCtx from tx.
func BuildSkillCtx(ctx context.Context, tx *storage.Tx, projectID, learningSpaceID string) (*SkillCtx, error) {
	skills, err := tx.LearningSpaces.Skills(ctx, learningSpaceID)
	if err != nil {
		return nil, fmt.Errorf("skilllearn: list learning space skills: %w", err)
	}
	sc := &SkillCtx{
		Tx:              tx,
		ProjectID:       projectID,
		LearningSpaceID: learningSpaceID,
		skillsByName:    make(map[string]*types.AgentSkill, len(skills)),
	}
	for _, s := range skills {
		sc.skillsByName[s.Name] = s
		sc.names = append(sc.names, s.Name)
	}
	return sc, nil
}

// SkillByName looks up a loaded skill by its sanitized name.
func (sc *SkillCtx) SkillByName(name string) (*types.AgentSkill, bool) {
	s, ok := sc.skillsByName[name]
	return s, ok
}

// Names returns every skill name currently in the learning space, for the
// "Available Skills" prompt render and for near-miss suggestions.
func (sc *SkillCtx) Names() []string { return append([]string(nil), sc.names...) }

// RenderAvailableSkills renders the "## Available Skills" prompt section.
func (sc *SkillCtx) RenderAvailableSkills() string {
	if len(sc.skillsByName) == 0 {
		return "(none yet)"
	}
	out := ""
	for _, name := range sc.names {
		s := sc.skillsByName[name]
		out += fmt.Sprintf("- %s: %s (files: %v)\n", s.Name, s.Description, s.FilePaths)
	}
	return out
}
