package skilllearn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/acontext-run/runtime/internal/apierr"
	"github.com/acontext-run/runtime/internal/event"
	"github.com/acontext-run/runtime/internal/logging"
	"github.com/acontext-run/runtime/pkg/types"
)

// toolOutcome is what dispatchTool reports back to the iteration loop.
type toolOutcome struct {
	ResultText    string
	RefreshSkills bool
	Finished      bool
}

// dispatchTool executes one tool call against sc, returning a
// ClassBusinessRejection error for mutation errors (unknown skill
// reference, name collision, ambiguous string replace) — callers must roll
// back the whole iteration on rejection (spec.md §4.5, "same shape as
// §4.3").
func dispatchTool(ctx context.Context, sc *SkillCtx, name string, argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	switch name {
	case ToolGetSkill:
		return dispatchGetSkill(sc, argsJSON)
	case ToolGetSkillFile:
		return dispatchGetSkillFile(ctx, sc, argsJSON)
	case ToolCreateSkill:
		return dispatchCreateSkill(ctx, sc, argsJSON)
	case ToolCreateSkillFile:
		return dispatchCreateSkillFile(ctx, sc, argsJSON)
	case ToolStrReplaceSkillFile:
		return dispatchStrReplaceSkillFile(ctx, sc, argsJSON)
	case ToolDeleteSkillFile:
		return dispatchDeleteSkillFile(ctx, sc, argsJSON)
	case ToolFinish:
		return &toolOutcome{ResultText: "ok", Finished: true}, nil
	case ToolReportThinking:
		return dispatchReportThinking(argsJSON)
	default:
		return nil, apierr.Validation(fmt.Sprintf("skilllearn: unknown tool %q", name))
	}
}

func unmarshalArgs[T any](argsJSON json.RawMessage) (T, *apierr.Error) {
	var v T
	if err := json.Unmarshal(argsJSON, &v); err != nil {
		var zero T
		return zero, apierr.Validation(fmt.Sprintf("skilllearn: malformed tool arguments: %v", err))
	}
	return v, nil
}

// nearestSkillSuggestion returns the loaded skill name closest to want by
// Levenshtein distance, or "" if there are no loaded skills.
func nearestSkillSuggestion(names []string, want string) string {
	best, bestDist := "", -1
	for _, n := range names {
		d := levenshtein.ComputeDistance(n, want)
		if bestDist == -1 || d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

func dispatchGetSkill(sc *SkillCtx, argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	args, verr := unmarshalArgs[GetSkillArgs](argsJSON)
	if verr != nil {
		return nil, verr
	}
	name := types.SanitizeSkillName(args.Name)
	if s, ok := sc.SkillByName(name); ok {
		b, _ := json.Marshal(s)
		return &toolOutcome{ResultText: string(b)}, nil
	}
	if suggestion := nearestSkillSuggestion(sc.Names(), name); suggestion != "" {
		return &toolOutcome{ResultText: fmt.Sprintf("no skill named %q; did you mean %q?", name, suggestion)}, nil
	}
	return &toolOutcome{ResultText: fmt.Sprintf("no skill named %q; none exist yet in this learning space", name)}, nil
}

func dispatchGetSkillFile(ctx context.Context, sc *SkillCtx, argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	args, verr := unmarshalArgs[GetSkillFileArgs](argsJSON)
	if verr != nil {
		return nil, verr
	}
	skill, ok := sc.SkillByName(types.SanitizeSkillName(args.SkillName))
	if !ok {
		return nil, apierr.Rejection(fmt.Sprintf("no skill named %q", args.SkillName))
	}
	artifact, err := sc.Tx.Disks.GetArtifact(ctx, skill.DiskID, args.FilePath)
	if err != nil {
		return &toolOutcome{ResultText: fmt.Sprintf("file %q not found on skill %q", args.FilePath, skill.Name)}, nil
	}
	return &toolOutcome{ResultText: artifact.Content}, nil
}

func dispatchCreateSkill(ctx context.Context, sc *SkillCtx, argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	args, verr := unmarshalArgs[CreateSkillArgs](argsJSON)
	if verr != nil {
		return nil, verr
	}
	fm, _, err := ParseFrontMatter(args.SkillMDContent)
	if err != nil {
		return nil, apierr.Validation(fmt.Sprintf("skilllearn: %v", err))
	}
	name := types.SanitizeSkillName(fm.Name)
	if name == "" {
		return nil, apierr.Validation("skilllearn: SKILL.md front matter must carry a non-empty name")
	}
	if _, exists := sc.SkillByName(name); exists {
		return nil, apierr.Rejection(fmt.Sprintf("a skill named %q already exists", name))
	}

	disk, err := sc.Tx.Disks.Create(ctx, sc.ProjectID, name)
	if err != nil {
		return nil, apierr.Fatal("create skill disk", err)
	}
	if _, err := sc.Tx.Disks.PutTextArtifact(ctx, disk.ID, "/SKILL.md", args.SkillMDContent); err != nil {
		return nil, apierr.Fatal("write SKILL.md", err)
	}
	skill, err := sc.Tx.Skills.Create(ctx, sc.ProjectID, disk.ID, name, fm.Description, []string{"/SKILL.md"})
	if err != nil {
		return nil, apierr.Fatal("create skill row", err)
	}
	if err := sc.Tx.LearningSpaces.LinkSkill(ctx, sc.LearningSpaceID, skill.ID); err != nil {
		return nil, apierr.Fatal("link skill to learning space", err)
	}

	event.Publish(event.Event{Type: event.SkillLearned, Data: event.SkillLearnedData{
		LearningSpaceID: sc.LearningSpaceID, SkillNames: []string{skill.Name},
	}})
	return &toolOutcome{ResultText: fmt.Sprintf("created skill %q", skill.Name), RefreshSkills: true}, nil
}

func dispatchCreateSkillFile(ctx context.Context, sc *SkillCtx, argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	args, verr := unmarshalArgs[CreateSkillFileArgs](argsJSON)
	if verr != nil {
		return nil, verr
	}
	skill, ok := sc.SkillByName(types.SanitizeSkillName(args.SkillName))
	if !ok {
		return nil, apierr.Rejection(fmt.Sprintf("no skill named %q", args.SkillName))
	}
	if _, err := sc.Tx.Disks.PutTextArtifact(ctx, skill.DiskID, args.FilePath, args.Content); err != nil {
		return nil, apierr.Fatal("write skill file", err)
	}
	if err := syncSkillRow(ctx, sc, skill, args.FilePath, args.Content); err != nil {
		return nil, apierr.Fatal("sync skill row", err)
	}
	return &toolOutcome{ResultText: fmt.Sprintf("wrote %s on skill %q", args.FilePath, skill.Name), RefreshSkills: true}, nil
}

func dispatchStrReplaceSkillFile(ctx context.Context, sc *SkillCtx, argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	args, verr := unmarshalArgs[StrReplaceSkillFileArgs](argsJSON)
	if verr != nil {
		return nil, verr
	}
	skill, ok := sc.SkillByName(types.SanitizeSkillName(args.SkillName))
	if !ok {
		return nil, apierr.Rejection(fmt.Sprintf("no skill named %q", args.SkillName))
	}
	artifact, err := sc.Tx.Disks.GetArtifact(ctx, skill.DiskID, args.FilePath)
	if err != nil {
		return nil, apierr.Rejection(fmt.Sprintf("file %q not found on skill %q", args.FilePath, skill.Name))
	}

	occurrences := strings.Count(artifact.Content, args.OldString)
	if occurrences != 1 {
		return nil, apierr.Rejection(fmt.Sprintf("old_string must match exactly once in %s, found %d", args.FilePath, occurrences))
	}
	newContent := strings.Replace(artifact.Content, args.OldString, args.NewString, 1)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(artifact.Content, newContent, false)
	logging.Logger.Debug().
		Str("skill", skill.Name).
		Str("file", args.FilePath).
		Str("diff", dmp.DiffPrettyText(diffs)).
		Msg("skilllearn: str_replace_skill_file")

	if _, err := sc.Tx.Disks.PutTextArtifact(ctx, skill.DiskID, args.FilePath, newContent); err != nil {
		return nil, apierr.Fatal("write skill file", err)
	}
	if err := syncSkillRow(ctx, sc, skill, args.FilePath, newContent); err != nil {
		return nil, apierr.Fatal("sync skill row", err)
	}
	return &toolOutcome{ResultText: fmt.Sprintf("replaced 1 occurrence in %s", args.FilePath), RefreshSkills: true}, nil
}

func dispatchDeleteSkillFile(ctx context.Context, sc *SkillCtx, argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	args, verr := unmarshalArgs[DeleteSkillFileArgs](argsJSON)
	if verr != nil {
		return nil, verr
	}
	skill, ok := sc.SkillByName(types.SanitizeSkillName(args.SkillName))
	if !ok {
		return nil, apierr.Rejection(fmt.Sprintf("no skill named %q", args.SkillName))
	}
	if !containsPath(skill.FilePaths, args.FilePath) {
		return nil, apierr.Rejection(fmt.Sprintf("file %q is not tracked on skill %q", args.FilePath, skill.Name))
	}
	if err := sc.Tx.Disks.DeleteArtifact(ctx, skill.DiskID, args.FilePath); err != nil {
		return nil, apierr.Fatal("delete skill file", err)
	}

	remaining := make([]string, 0, len(skill.FilePaths))
	for _, p := range skill.FilePaths {
		if p != args.FilePath {
			remaining = append(remaining, p)
		}
	}
	if err := sc.Tx.Skills.UpdateDescriptionAndFiles(ctx, skill.ID, skill.Description, remaining); err != nil {
		return nil, apierr.Fatal("sync skill row", err)
	}
	return &toolOutcome{ResultText: fmt.Sprintf("deleted %s from skill %q", args.FilePath, skill.Name), RefreshSkills: true}, nil
}

func dispatchReportThinking(argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	if _, verr := unmarshalArgs[ReportThinkingArgs](argsJSON); verr != nil {
		return nil, verr
	}
	return &toolOutcome{ResultText: "ack"}, nil
}

// syncSkillRow re-derives a skill's tracked file list (and, when filePath
// is the SKILL.md itself, its description) after a file write.
func syncSkillRow(ctx context.Context, sc *SkillCtx, skill *types.AgentSkill, filePath, content string) error {
	description := skill.Description
	if filePath == "/SKILL.md" {
		fm, _, err := ParseFrontMatter(content)
		if err == nil {
			description = fm.Description
		}
	}
	filePaths := skill.FilePaths
	if !containsPath(filePaths, filePath) {
		filePaths = append(append([]string(nil), filePaths...), filePath)
	}
	return sc.Tx.Skills.UpdateDescriptionAndFiles(ctx, skill.ID, description, filePaths)
}

func containsPath(paths []string, path string) bool {
	for _, p := range paths {
		if p == path {
			return true
		}
	}
	return false
}
