package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func TestDriverCheckerHealthyWhenPingSucceeds(t *testing.T) {
	checker := NewDriverChecker(fakePinger{})
	result := checker.Check(context.Background())

	assert.True(t, result.Healthy)
	assert.Equal(t, CheckTypeDriver, checker.Type())
}

func TestDriverCheckerUnhealthyWhenPingFails(t *testing.T) {
	checker := NewDriverChecker(fakePinger{err: errors.New("socket closed")})
	result := checker.Check(context.Background())

	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "socket closed")
}
