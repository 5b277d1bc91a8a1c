// Package sessions locates and reads the agent's on-disk session transcripts.
//
// The agent keeps one JSONL transcript per session under
// <claudeHome>/projects/<slug>/<sessionId>.jsonl, where slug is derived from
// the working directory the session was started in.
package sessions

import (
	"path/filepath"
	"strings"
)

// Slug converts a working directory into the agent's project directory name.
// "/Users/foo/bar" becomes "-Users-foo-bar".
func Slug(cwd string) string {
	normalized := strings.NewReplacer("/", "-", `\`, "-").Replace(cwd)
	if strings.HasPrefix(normalized, "-") {
		return normalized
	}
	return "-" + normalized
}

// ProjectsDir returns the directory holding every project's transcripts.
func ProjectsDir(claudeHome string) string {
	return filepath.Join(claudeHome, "projects")
}

// ProjectDir returns the transcript directory for sessions started in cwd.
func ProjectDir(claudeHome, cwd string) string {
	return filepath.Join(ProjectsDir(claudeHome), Slug(cwd))
}

// TranscriptPath returns the transcript file for a session.
func TranscriptPath(projectDir, sessionID string) string {
	return filepath.Join(projectDir, sessionID+".jsonl")
}

// DerivePaths computes the transcript and project paths for a session that
// was started in cwd.
func DerivePaths(claudeHome, cwd, sessionID string) (transcriptPath, projectPath string) {
	projectPath = ProjectDir(claudeHome, cwd)
	return TranscriptPath(projectPath, sessionID), projectPath
}

// SameCwd compares two working directories ignoring trailing slashes.
func SameCwd(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}
