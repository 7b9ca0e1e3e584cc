// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/netdata/netdata/go/explainmanifest/explain"
	"github.com/netdata/netdata/go/explainmanifest/explain/manifest"
	"github.com/netdata/netdata/go/explainmanifest/logger"
	"github.com/netdata/netdata/go/explainmanifest/pkg/buildinfo"
	"github.com/netdata/netdata/go/explainmanifest/pkg/cli"
)

func main() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(s string, args ...interface{}) {}))

	opts := parseCLI()

	if opts.Version {
		fmt.Printf("%s, version: %s\n", cli.Name, buildinfo.Version)
		return
	}

	logger.Level.SetFromEnv()
	if opts.Debug {
		logger.Level.Set(slog.LevelDebug)
	}

	r := explain.New(explain.Config{
		Path:         opts.Path,
		Output:       opts.Output,
		FileList:     opts.FileList,
		Suite:        opts.Suite,
		SuitesConfig: opts.SuitesConfig,
		FixturesDir:  opts.FixturesDir,
		Manifest: manifest.Options{
			Owners:              opts.Owners,
			Mode:                opts.Mode,
			Size:                opts.Size,
			Arch:                opts.Arch,
			ImportedSymbols:     opts.ImportedSymbols,
			ExportedSymbols:     opts.ExportedSymbols,
			VersionRequirement:  opts.WantVersionRequirement(),
			MergeRpathsRunpaths: opts.MergeRpathsRunpaths,
		},
		SkipBinaryLinks: opts.SkipBinaryLinks,
		ExternalDiff:    opts.ExternalDiff,
	})

	r.Debugf("%s: %s", cli.Name, buildinfo.Info())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := r.Run(ctx); err != nil {
		if !errors.Is(err, explain.ErrExpectationsFailed) {
			r.Error(err)
		}
		stop()
		os.Exit(1)
	}
}

func parseCLI() *cli.Option {
	opt, err := cli.Parse(os.Args)
	if err != nil {
		if cli.IsHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	return opt
}
