package context_test

import (
	"os"
	"path/filepath"
	"testing"

	ctxpkg "github.com/omniwaifu/dere-sub005/pkg/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSessionTypeChatMediumIsAlwaysConversational(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0o644))
	assert.Equal(t, ctxpkg.SessionTypeConversational, ctxpkg.DetectSessionType("discord", dir))
}

func TestDetectSessionTypeEmptyWorkingDirIsConversational(t *testing.T) {
	assert.Equal(t, ctxpkg.SessionTypeConversational, ctxpkg.DetectSessionType("cli", ""))
}

func TestDetectSessionTypeManifestDirIsCode(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{}"), 0o644))
	assert.Equal(t, ctxpkg.SessionTypeCode, ctxpkg.DetectSessionType("cli", dir))
}

func TestDetectSessionTypePlainDirIsConversational(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, ctxpkg.SessionTypeConversational, ctxpkg.DetectSessionType("cli", dir))
}

func TestProjectNameReturnsBaseOfWorkingDir(t *testing.T) {
	assert.Equal(t, "myproject", ctxpkg.ProjectName("/home/user/code/myproject"))
	assert.Equal(t, "", ctxpkg.ProjectName(""))
}
