// Package execx runs external programs synchronously.
//
// Every invocation blocks until the process exits and reports failure as an
// error carrying the tool's stderr, so callers can decide what to do before
// moving on to steps that depend on the tool's output.
package execx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Runner provides an abstraction for running external commands.
type Runner interface {
	// Run executes name with args in dir and returns its stdout.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// RealRunner implements Runner with os/exec.
type RealRunner struct{}

// NewRealRunner creates a new RealRunner.
func NewRealRunner() *RealRunner {
	return &RealRunner{}
}

// Run executes the command. Arguments are passed directly to the program,
// never through a shell.
func (r *RealRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return stdout.Bytes(), fmt.Errorf("%s failed: %w", name, err)
		}
		return stdout.Bytes(), fmt.Errorf("%s failed: %w: %s", name, err, msg)
	}
	return stdout.Bytes(), nil
}

// Invocation records one call made to a FakeRunner.
type Invocation struct {
	Dir  string
	Name string
	Args []string
}

// FakeRunner implements Runner for testing. It records every invocation and
// delegates to an optional handler.
type FakeRunner struct {
	mu          sync.Mutex
	invocations []Invocation
	handler     func(inv Invocation) ([]byte, error)
}

// NewFakeRunner creates a FakeRunner. handler may be nil.
func NewFakeRunner(handler func(inv Invocation) ([]byte, error)) *FakeRunner {
	return &FakeRunner{handler: handler}
}

// Run records the invocation and calls the handler.
func (r *FakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	inv := Invocation{Dir: dir, Name: name, Args: append([]string(nil), args...)}

	r.mu.Lock()
	r.invocations = append(r.invocations, inv)
	r.mu.Unlock()

	if r.handler == nil {
		return nil, nil
	}
	return r.handler(inv)
}

// Invocations returns a copy of the recorded invocations.
func (r *FakeRunner) Invocations() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Invocation(nil), r.invocations...)
}
