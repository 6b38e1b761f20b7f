package sandbox

import "strings"

const generatedFilesPrefix = "GENERATED_FILES:"

// extractGeneratedFiles looks for a trailing "GENERATED_FILES: a,b,c" line
// in a run_command's text output and splits it into individual paths.
func extractGeneratedFiles(output string) []string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, generatedFilesPrefix) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(line, generatedFilesPrefix))
		if rest == "" {
			return nil
		}
		parts := strings.Split(rest, ",")
		files := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				files = append(files, p)
			}
		}
		return files
	}
	return nil
}
