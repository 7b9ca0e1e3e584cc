// SPDX-License-Identifier: GPL-3.0-or-later

package cli

import (
	"errors"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/go-homedir"
)

const Name = "explain-manifest"

// Option defines command line options.
type Option struct {
	Path         string `short:"p" long:"path" description:"path to the directory to explain" required:"true"`
	Output       string `short:"o" long:"output" description:"path to output manifest, use - to write to stdout" default:"-"`
	FileList     string `short:"f" long:"file_list" description:"path to the files list to explain for manifest; each line is a glob pattern of full path"`
	Suite        string `short:"s" long:"suite" description:"expect suite name to test the contents against"`
	SuitesConfig string `long:"suites_config" description:"YAML file with target suites, replaces the built-in table"`
	FixturesDir  string `long:"fixtures_dir" description:"directory golden manifests are resolved against" default:"."`

	Owners               bool `long:"owners" description:"export and compare owner and group"`
	Mode                 bool `long:"mode" description:"export and compare mode"`
	Size                 bool `long:"size" description:"export and compare size"`
	Arch                 bool `long:"arch" description:"export and compare architecture"`
	MergeRpathsRunpaths  bool `long:"merge_rpaths_runpaths" description:"treat RPATH and RUNPATH as same"`
	ImportedSymbols      bool `long:"imported_symbols" description:"export and compare imported symbols"`
	ExportedSymbols      bool `long:"exported_symbols" description:"export and compare exported symbols"`
	VersionRequirement   bool `long:"version_requirement" description:"export and compare symbol version requirements (on by default), overrides --no_version_requirement"`
	NoVersionRequirement bool `long:"no_version_requirement" description:"do not export symbol version requirements"`
	SkipBinaryLinks      bool `long:"skip_binary_links" description:"do not list symlinks that sit where binaries are expected"`
	ExternalDiff         bool `long:"external_diff" description:"compare against the golden manifest with the system diff tool"`

	Debug   bool `short:"d" long:"debug" description:"debug mode"`
	Version bool `short:"v" long:"version" description:"display the version and exit"`
}

// Parse returns parsed command-line flags in Option struct.
// args[0] is the program name.
func Parse(args []string) (*Option, error) {
	opt := &Option{}
	parser := flags.NewParser(opt, flags.Default)
	parser.Name = Name
	parser.Usage = "[OPTIONS]"

	if len(args) > 0 {
		args = args[1:]
	}

	// --version must work without the required --path
	for _, a := range args {
		if a == "-v" || a == "--version" {
			opt.Version = true
			return opt, nil
		}
	}

	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, errors.New("unexpected arguments: " + strings.Join(rest, " "))
	}

	if opt.Path, err = homedir.Expand(opt.Path); err != nil {
		return nil, err
	}
	if opt.Output != "-" {
		if opt.Output, err = homedir.Expand(opt.Output); err != nil {
			return nil, err
		}
	}

	return opt, nil
}

// WantVersionRequirement reports whether version requirements are rendered.
// An explicit --version_requirement wins over --no_version_requirement.
func (o *Option) WantVersionRequirement() bool {
	return o.VersionRequirement || !o.NoVersionRequirement
}

func IsHelp(err error) bool {
	return flags.WroteHelp(err)
}
