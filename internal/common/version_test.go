package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBuildFallsBackToBuildTimeWhenCommitUnknown(t *testing.T) {
	originalCommit := GitCommit
	originalBuildTime := BuildTime
	t.Cleanup(func() {
		GitCommit = originalCommit
		BuildTime = originalBuildTime
	})

	GitCommit = "unknown"
	BuildTime = "2026-01-01"

	assert.Equal(t, "2026-01-01", GetBuild())
}

func TestGetBuildCombinesBuildTimeAndCommit(t *testing.T) {
	originalCommit := GitCommit
	originalBuildTime := BuildTime
	t.Cleanup(func() {
		GitCommit = originalCommit
		BuildTime = originalBuildTime
	})

	GitCommit = "abc1234"
	BuildTime = "2026-01-01"

	assert.Equal(t, "2026-01-01@abc1234", GetBuild())
}

func TestGetFullVersionIncludesAllThreeFields(t *testing.T) {
	full := GetFullVersion()
	assert.Contains(t, full, Version)
	assert.Contains(t, full, BuildTime)
	assert.Contains(t, full, GitCommit)
}
