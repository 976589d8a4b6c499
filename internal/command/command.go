// Package command defines the capability every pipeline stage implements
// and a composite that runs several of them in sequence — the Go rendering
// of the source's polymorphic Command/Macro hierarchy (spec.md §9) without
// inheritance.
package command

import (
	"context"
	"time"
)

// Command is anything the supervisor or the cleaner daemon can run.
type Command interface {
	Run() error
}

// Macro runs an ordered sequence of commands, stopping at the first error.
type Macro struct {
	commands []Command
}

// NewMacro returns an empty command sequence.
func NewMacro() *Macro {
	return &Macro{}
}

// Add appends a command to the sequence.
func (m *Macro) Add(c Command) {
	m.commands = append(m.commands, c)
}

// Run executes every command in order, returning the first error and
// abandoning the remainder of the sequence.
func (m *Macro) Run() error {
	for _, c := range m.commands {
		if err := c.Run(); err != nil {
			return err
		}
	}
	return nil
}

// RunContinuously runs cmd in a sleep(pause)-separated loop until ctx is
// cancelled. This is the cleaner daemon's driver — the Go analogue of
// utils.run_continuously.
func RunContinuously(ctx context.Context, cmd Command, pause time.Duration, onError func(error)) {
	ticker := time.NewTicker(pause)
	defer ticker.Stop()

	if err := cmd.Run(); err != nil && onError != nil {
		onError(err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cmd.Run(); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
