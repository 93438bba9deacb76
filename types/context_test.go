package types

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_RunAndAttempt(t *testing.T) {
	ctx := context.Background()

	_, ok := RunID(ctx)
	assert.False(t, ok)

	ctx = WithRunID(ctx, "run-1")
	ctx = WithAttempt(ctx, 3)

	id, ok := RunID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "run-1", id)

	n, ok := Attempt(ctx)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = Attempt(WithAttempt(context.Background(), 0))
	assert.False(t, ok)
}
