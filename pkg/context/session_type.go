package context

import (
	"os"
	"path/filepath"
)

// SessionType is the classification /context/build_session_start returns.
type SessionType string

const (
	SessionTypeConversational SessionType = "conversational"
	SessionTypeCode           SessionType = "code"
)

// codeManifests are the files whose presence in workingDir marks it as a
// code project, beyond a plain .git checkout.
var codeManifests = []string{"pyproject.toml", "package.json", "Cargo.toml", "go.mod"}

// conversationalMedia are mediums that are always conversational regardless
// of working directory — there is no "project" for a chat network.
var conversationalMedia = map[string]bool{"discord": true, "telegram": true}

// DetectSessionType classifies a session start by medium and working
// directory, per the precedence: medium override, then empty dir, then a
// recognized project directory, else conversational.
func DetectSessionType(medium, workingDir string) SessionType {
	if conversationalMedia[medium] {
		return SessionTypeConversational
	}
	if workingDir == "" {
		return SessionTypeConversational
	}
	if isCodeDir(workingDir) {
		return SessionTypeCode
	}
	return SessionTypeConversational
}

func isCodeDir(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	for _, manifest := range codeManifests {
		if _, err := os.Stat(filepath.Join(dir, manifest)); err == nil {
			return true
		}
	}
	return false
}

// ProjectName returns the base name of workingDir, used as the optional
// project_name field when session type is code.
func ProjectName(workingDir string) string {
	if workingDir == "" {
		return ""
	}
	return filepath.Base(filepath.Clean(workingDir))
}
