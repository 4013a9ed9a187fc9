package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// DatabaseOptions controls which signature database is loaded, mirroring
// the struct-tag option-group style of zgrab2's GeneralOptions.
type DatabaseOptions struct {
	DBFile string `short:"d" long:"db" description:"Path to the OS fingerprint signature database"`
}

// MatchOptions controls the ranking pass.
type MatchOptions struct {
	Threshold float64 `short:"t" long:"threshold" default:"0.85" description:"Minimum accuracy a candidate must reach to be considered a match"`
	Capacity  int     `short:"k" long:"capacity" default:"10" description:"Maximum number of ranked candidates to return per observed fingerprint"`
	Verbose   bool    `short:"v" long:"verbose" description:"Include per-attribute scoring diagnostics in the output"`
}

// InputOutputOptions mirrors zgrab2's InputOutputOptions: filenames, with
// "-" meaning stdin/stdout.
type InputOutputOptions struct {
	InputFileName  string `short:"f" long:"input-file" default:"-" description:"File of observed fingerprints to match, one record per blank-line-delimited block, use - for stdin"`
	OutputFileName string `short:"o" long:"output-file" default:"-" description:"Output filename, use - for stdout"`
	ConfigFile     string `short:"c" long:"config" description:"Optional YAML file of option defaults, overridden by any flag explicitly given on the command line"`
}

// Options is the full flag set parsed by zflags in main.go.
type Options struct {
	DatabaseOptions
	MatchOptions
	InputOutputOptions
}

// yamlOverlay is the subset of Options a --config file may set. It fills
// in every field whose flag was not given explicitly on the command line,
// even one holding a flag default, the same "explicit flag wins" rule
// zgrab2's ini overlay follows for its per-module defaults.
type yamlOverlay struct {
	DBFile    string  `yaml:"db"`
	Threshold float64 `yaml:"threshold"`
	Capacity  int     `yaml:"capacity"`
	Verbose   bool    `yaml:"verbose"`
	Input     string  `yaml:"input"`
	Output    string  `yaml:"output"`
}

// applyConfigFile loads opts.ConfigFile, if set, and overwrites each field
// whose flag is not marked in explicit with the overlay's value, when that
// value is non-zero.
func applyConfigFile(opts *Options, explicit map[string]bool) {
	if opts.ConfigFile == "" {
		return
	}
	data, err := os.ReadFile(opts.ConfigFile)
	if err != nil {
		log.Fatalf("could not read config file %s: %v", opts.ConfigFile, err)
	}
	var overlay yamlOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		log.Fatalf("could not parse config file %s: %v", opts.ConfigFile, err)
	}
	if !explicit["db"] && overlay.DBFile != "" {
		opts.DBFile = overlay.DBFile
	}
	if !explicit["threshold"] && overlay.Threshold != 0 {
		opts.Threshold = overlay.Threshold
	}
	if !explicit["capacity"] && overlay.Capacity != 0 {
		opts.Capacity = overlay.Capacity
	}
	if !explicit["verbose"] && overlay.Verbose {
		opts.Verbose = true
	}
	if !explicit["input-file"] && overlay.Input != "" {
		opts.InputFileName = overlay.Input
	}
	if !explicit["output-file"] && overlay.Output != "" {
		opts.OutputFileName = overlay.Output
	}
}
