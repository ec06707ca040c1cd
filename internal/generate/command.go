package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"reel-go/internal/config"
	"reel-go/internal/reel"
)

// maxStderr bounds how much of a failed command's stderr ends up in the
// job's error trailer.
const maxStderr = 2048

// CommandGenerator produces content by running an external program. Each
// argument may reference the request through placeholders:
//
//	{input}    latest file of the source content type
//	{output}   path the program must write
//	{prompt}   the job instruction
//	{version}  target version number
//	{type}     content type
//	{dir}      unit directory
type CommandGenerator struct {
	name    string
	command []string
	timeout time.Duration
}

var _ reel.Generator = (*CommandGenerator)(nil)

func NewCommandGenerator(name string, command []string, timeout time.Duration) (*CommandGenerator, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("generator %q: empty command", name)
	}
	if name == "" {
		name = command[0]
	}
	return &CommandGenerator{name: name, command: command, timeout: timeout}, nil
}

// NewCommandGeneratorFromConfig builds a generator from its config entry.
func NewCommandGeneratorFromConfig(cfg config.GeneratorConfig) (*CommandGenerator, error) {
	return NewCommandGenerator(cfg.Name, cfg.Command, time.Duration(cfg.TimeoutSeconds)*time.Second)
}

func (g *CommandGenerator) Name() string { return g.name }

func (g *CommandGenerator) expand(req reel.GenerationRequest) []string {
	r := strings.NewReplacer(
		"{input}", req.InputPath,
		"{output}", req.OutputPath,
		"{prompt}", req.Instruction,
		"{version}", strconv.Itoa(req.TargetVersion),
		"{type}", string(req.ContentType),
		"{dir}", req.Dir,
	)
	args := make([]string, len(g.command))
	for i, a := range g.command {
		args[i] = r.Replace(a)
	}
	return args
}

// Generate runs the command in req.Dir. The instruction is also fed on
// stdin. A non-zero exit, a timeout or an empty output file is an error.
func (g *CommandGenerator) Generate(ctx context.Context, req reel.GenerationRequest) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	args := g.expand(req)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = req.Dir
	cmd.Stdin = strings.NewReader(req.Instruction)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s timed out after %s", g.name, g.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[len(msg)-maxStderr:]
		}
		if msg != "" {
			return "", fmt.Errorf("%s: %w: %s", g.name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", g.name, err)
	}

	if err := checkOutput(req.OutputPath); err != nil {
		return "", fmt.Errorf("%s: %w", g.name, err)
	}
	return g.name, nil
}
