// SPDX-License-Identifier: GPL-3.0-or-later

// Package explain runs one explain-manifest pass: walk a directory,
// render its manifest, compare it with the golden file of a suite and
// evaluate the suite expectations.
package explain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/netdata/netdata/go/explainmanifest/explain/expect"
	"github.com/netdata/netdata/go/explainmanifest/explain/fileinfo"
	"github.com/netdata/netdata/go/explainmanifest/explain/manifest"
	"github.com/netdata/netdata/go/explainmanifest/explain/suites"
	"github.com/netdata/netdata/go/explainmanifest/logger"
)

// ErrExpectationsFailed is returned by Run when the golden comparison or
// an expectation failed.
var ErrExpectationsFailed = expect.ErrExpectationsFailed

// Config is a Runner configuration.
type Config struct {
	Path         string
	Output       string
	FileList     string
	Suite        string
	SuitesConfig string
	FixturesDir  string

	Manifest        manifest.Options
	SkipBinaryLinks bool
	ExternalDiff    bool
	Workers         int
}

// Runner executes a single pass.
type Runner struct {
	*logger.Logger

	Config
	// Stdout receives the report and the manifest when Output is "-".
	Stdout io.Writer
}

// New creates a new Runner.
func New(cfg Config) *Runner {
	return &Runner{
		Logger: logger.New().With(
			slog.String("component", "explain"),
		),
		Config: cfg,
		Stdout: os.Stdout,
	}
}

// Run executes the pass. Expectation failures are reported first and
// returned as ErrExpectationsFailed at the end.
func (r *Runner) Run(ctx context.Context) error {
	fi, err := os.Stat(r.Path)
	if err != nil {
		return fmt.Errorf("stat '%s': %w", r.Path, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("don't know how to process '%s': %w", r.Path, fileinfo.ErrNotDirectory)
	}

	patterns, err := manifest.ReadFileList(r.FileList)
	if err != nil {
		return err
	}

	reg, err := r.loadSuites()
	if err != nil {
		return err
	}

	transform := reg.Transform
	var suite *expect.ExpectSuite
	if r.Suite != "" {
		if suite, err = reg.Lookup(r.Suite); err != nil {
			return err
		}
		transform = suite.Transform
		r.Infof("using suite '%s' (%s)", r.Suite, suite.Name)
	}

	walker := &fileinfo.Walker{
		Logger:          r.With(slog.String("component", "walker")),
		Patterns:        patterns,
		Transform:       transform,
		SkipBinaryLinks: r.SkipBinaryLinks,
		Workers:         r.Workers,
	}
	infos, err := walker.Walk(ctx, r.Path)
	if err != nil {
		return err
	}
	r.Infof("explained %d entries in '%s'", len(infos), r.Path)

	opts := r.Manifest
	if suite != nil {
		opts.UseRpath = suite.UseRpath
	}

	if err := r.writeManifest(infos, opts); err != nil {
		return err
	}

	if suite == nil {
		return nil
	}

	rendered, err := manifest.Render("", infos, opts)
	if err != nil {
		return err
	}

	rep := expect.NewReporter(r.Stdout)
	e := expect.NewEngine(infos, rep)

	if err := e.CompareManifest(ctx, suite, rendered, r.differ()); err != nil {
		return err
	}
	if err := e.Run(suite); err != nil {
		return err
	}

	return rep.Summarize()
}

func (r *Runner) loadSuites() (*suites.Registry, error) {
	if r.SuitesConfig != "" {
		return suites.LoadFile(r.SuitesConfig, r.FixturesDir)
	}
	return suites.Default(r.FixturesDir)
}

func (r *Runner) differ() manifest.Differ {
	if r.ExternalDiff {
		return &manifest.ExternalDiffer{Logger: r.With(slog.String("component", "diff"))}
	}
	return manifest.BuiltinDiffer{}
}

func (r *Runner) writeManifest(infos []*fileinfo.FileInfo, opts manifest.Options) error {
	title := "contents in directory " + r.Path

	switch r.Output {
	case "":
		return nil
	case "-":
		return manifest.Write(r.Stdout, title, infos, opts)
	}

	f, err := os.Create(r.Output)
	if err != nil {
		return fmt.Errorf("create manifest '%s': %w", r.Output, err)
	}
	if err := manifest.Write(f, title, infos, opts); err != nil {
		_ = f.Close()
		return fmt.Errorf("write manifest '%s': %w", r.Output, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write manifest '%s': %w", r.Output, err)
	}
	r.Infof("manifest written to '%s'", r.Output)

	return nil
}
