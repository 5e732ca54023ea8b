// Package render produces structure drawings with external programs: VARNA
// for secondary structure diagrams and an arc-diagram command for comparing
// a produced structure against the submitted one.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrDisabled is returned by every call of a renderer built with rendering
// turned off.
var ErrDisabled = errors.New("rendering disabled")

// Renderer draws structures to SVG files.
type Renderer interface {
	// Secondary draws one structure. Strand separators in sequence and
	// structure are dropped.
	Secondary(ctx context.Context, sequence, structure, outPath string) error
	// Arc draws reference pairs above the axis and produced pairs below it.
	Arc(ctx context.Context, reference, produced, outPath string) error
}

// Config locates the rendering programs. The arc command is invoked as
// `RchieCmd <reference> <produced> <output>`.
type Config struct {
	Enabled  bool
	JavaPath string
	VarnaJar string
	RchieCmd string
	Timeout  time.Duration
}

// Validate checks that every configured program exists.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.VarnaJar == "" {
		return errors.New("render: VARNA jar path is empty")
	}
	if _, err := os.Stat(c.VarnaJar); err != nil {
		return fmt.Errorf("render: VARNA jar: %w", err)
	}
	if _, err := exec.LookPath(c.JavaPath); err != nil {
		return fmt.Errorf("render: java: %w", err)
	}
	if _, err := exec.LookPath(c.RchieCmd); err != nil {
		return fmt.Errorf("render: arc diagram command: %w", err)
	}
	return nil
}

// Runner executes a program. Tests substitute it to avoid spawning processes.
type Runner func(ctx context.Context, name string, args ...string) error

// New validates cfg and returns the matching Renderer.
func New(cfg Config) (Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return Disabled{}, nil
	}
	return &External{cfg: cfg, run: execRunner}, nil
}

// NewWithRunner is New with a custom process runner. The config is not
// validated against the filesystem.
func NewWithRunner(cfg Config, run Runner) *External {
	return &External{cfg: cfg, run: run}
}

// External shells out to VARNA and the arc diagram command.
type External struct {
	cfg Config
	run Runner
}

func (e *External) Secondary(ctx context.Context, sequence, structure, outPath string) error {
	seq := strings.ReplaceAll(sequence, " ", "")
	db := strings.ReplaceAll(structure, " ", "")
	if seq == "" || len(seq) != len(db) {
		return fmt.Errorf("render: sequence and structure lengths differ (%d vs %d)", len(seq), len(db))
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return e.run(ctx, e.cfg.JavaPath,
		"-cp", e.cfg.VarnaJar, "fr.orsay.lri.varna.applications.VARNAcmd",
		"-sequenceDBN", seq,
		"-structureDBN", db,
		"-o", outPath)
}

func (e *External) Arc(ctx context.Context, reference, produced, outPath string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return e.run(ctx, e.cfg.RchieCmd,
		strings.ReplaceAll(reference, " ", ""),
		strings.ReplaceAll(produced, " ", ""),
		outPath)
}

func (e *External) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.Timeout)
}

func execRunner(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return fmt.Errorf("render: %s: %w: %s", name, err, msg)
	}
	return nil
}

// Disabled is the Renderer used when no rendering programs are installed.
type Disabled struct{}

func (Disabled) Secondary(context.Context, string, string, string) error { return ErrDisabled }
func (Disabled) Arc(context.Context, string, string, string) error       { return ErrDisabled }

var (
	_ Renderer = (*External)(nil)
	_ Renderer = Disabled{}
)
