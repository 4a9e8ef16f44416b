// File: cmd/regbot/main_test.go
package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/regbot-cli/cmd"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "clean run", err: nil, want: 0},
		{name: "cancelled", err: context.Canceled, want: 0},
		{name: "wrapped cancelled", err: fmt.Errorf("run aborted by user signal: %w", context.Canceled), want: 0},
		{name: "failed cases", err: fmt.Errorf("%w: 1 of 3", cmd.ErrCasesFailed), want: 1},
		{name: "startup failure", err: errors.New("could not open browser session"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
