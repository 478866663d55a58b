package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecCheckerHealthyOnZeroExit(t *testing.T) {
	checker := NewExecChecker([]string{"true"})
	result := checker.Check(context.Background())

	assert.True(t, result.Healthy)
	assert.Equal(t, CheckTypeExec, checker.Type())
}

func TestExecCheckerUnhealthyOnNonZeroExit(t *testing.T) {
	checker := NewExecChecker([]string{"false"})
	result := checker.Check(context.Background())

	assert.False(t, result.Healthy)
}

func TestExecCheckerUnhealthyOnMissingCommand(t *testing.T) {
	checker := NewExecChecker([]string{"this-binary-does-not-exist-anywhere"})
	result := checker.Check(context.Background())

	assert.False(t, result.Healthy)
}

func TestExecCheckerRejectsEmptyCommand(t *testing.T) {
	checker := NewExecChecker(nil)
	result := checker.Check(context.Background())

	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "no command specified")
}

func TestExecCheckerTimesOut(t *testing.T) {
	checker := NewExecChecker([]string{"sleep", "1"}).WithTimeout(20 * time.Millisecond)
	result := checker.Check(context.Background())

	assert.False(t, result.Healthy)
}
