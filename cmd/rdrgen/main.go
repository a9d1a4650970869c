// Command rdrgen converts CCSDS packet streams into JPSS Common RDR HDF5
// files and inverts that transform, per the CDFCB-X Vol II control
// document. Subcommands: create, dump, aggr, info, extract, config.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jpss-rdr/rdrgen/internal/rdr/ccsds"
	"github.com/jpss-rdr/rdrgen/internal/rdr/collector"
	"github.com/jpss-rdr/rdrgen/internal/rdr/config"
	"github.com/jpss-rdr/rdrgen/internal/rdr/hdf5reader"
	"github.com/jpss-rdr/rdrgen/internal/rdr/hdf5writer"
	"github.com/jpss-rdr/rdrgen/internal/rdr/ledger"
	"github.com/jpss-rdr/rdrgen/internal/rdr/network"
	"github.com/jpss-rdr/rdrgen/internal/rdr/pipeline"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrtime"
	"github.com/jpss-rdr/rdrgen/internal/rdr/report"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "create":
		err = runCreate(args)
	case "dump":
		err = runDump(args)
	case "aggr":
		err = runAggr(args)
	case "info":
		err = runInfo(args)
	case "extract":
		err = runExtract(args)
	case "config":
		err = runConfig(args)
	case "version":
		fmt.Printf("rdrgen version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "rdrgen %s: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`rdrgen - JPSS Common RDR generator and dumper

Usage: rdrgen <command> [options]

Commands:
  create   Build RDR HDF5 files from a CCSDS packet stream
  dump     Extract PDS packet files from an existing RDR HDF5 file
  aggr     Recompute the _Aggr aggregate dataset for an RDR HDF5 file
  info     Render an HTML summary of a ledgered ingest run
  extract  Extract one granule's raw Common-RDR bytes for debugging
  config   Validate or print a loaded configuration
  version  Show rdrgen version
  help     Show this help message

create, dump and config accept exactly one of --satellite <id> or --config <path>.`)
}

// resolveConfig implements the --satellite/--config mutual exclusivity
// shared by the subcommands that load a configuration (create, dump,
// config).
func resolveConfig(satellite, configPath string) (config.Config, error) {
	if satellite != "" && configPath != "" {
		return config.Config{}, fmt.Errorf("--satellite and --config are mutually exclusive")
	}
	if satellite != "" {
		cfg, ok := config.Default(satellite)
		if !ok {
			return config.Config{}, fmt.Errorf("no built-in config for satellite %q", satellite)
		}
		return cfg, nil
	}
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.Config{}, fmt.Errorf("one of --satellite or --config is required")
}

func setDebugWriters(debug bool) {
	var diag, trace io.Writer = io.Discard, io.Discard
	if debug {
		diag, trace = os.Stderr, os.Stderr
	}
	collector.SetLogWriters(os.Stderr, diag, trace)
	hdf5writer.SetLogWriters(os.Stderr, diag)
	network.SetLogWriters(os.Stderr, diag)
	ledger.SetLogWriter(os.Stderr)
	if debug {
		hdf5reader.SetDebugWriter(os.Stderr)
	}
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	satellite := fs.String("satellite", "", "built-in satellite id (npp, j01, j02, j03, j04)")
	configPath := fs.String("config", "", "path to a YAML config file")
	out := fs.String("out", ".", "output directory for HDF5 files")
	ledgerPath := fs.String("ledger", "", "optional path to a granule ledger SQLite database")
	debug := fs.Bool("debug", false, "enable diagnostic and trace logging")
	fs.Parse(args)
	setDebugWriters(*debug)

	inputs := fs.Args()
	if len(inputs) == 0 {
		return fmt.Errorf("at least one input packet file is required (positional args)")
	}

	cfg, err := resolveConfig(*satellite, *configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var src pipeline.Source
	if len(inputs) == 1 {
		f, err := os.Open(inputs[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		src = ccsds.NewFileSource(f)
	} else {
		tmp, err := os.CreateTemp("", "rdrgen-merge-*.dat")
		if err != nil {
			return fmt.Errorf("create merge tempfile: %w", err)
		}
		tmpPath := tmp.Name()
		defer os.Remove(tmpPath)
		if err := ccsds.Merge(inputs, tmp); err != nil {
			tmp.Close()
			return fmt.Errorf("merge inputs: %w", err)
		}
		tmp.Close()
		f, err := os.Open(tmpPath)
		if err != nil {
			return fmt.Errorf("reopen merged input: %w", err)
		}
		defer f.Close()
		src = ccsds.NewFileSource(f)
	}

	var led *ledger.Ledger
	var runID string
	if *ledgerPath != "" {
		led, err = ledger.Open(*ledgerPath)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer led.Close()
		runID, err = led.StartRun(time.Now().UnixMicro(), cfg.Satellite.ShortName)
		if err != nil {
			return fmt.Errorf("start ledger run: %w", err)
		}
	}

	col := collector.New(cfg)
	w := hdf5writer.New(cfg, *out)

	writeFn := func(g *collector.Group) (string, error) {
		start := time.Now()
		path, err := w.WriteGroup(g, rdrtime.FromTime(time.Now()))
		if err == nil && led != nil {
			led.RecordGroup(runID, g, path, time.Now().UnixMicro(), time.Since(start).Nanoseconds())
		}
		return path, err
	}

	var failed int
	err = pipeline.Run(src, col, writeFn, func(r pipeline.Result) {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "failed writing group: %v\n", r.Err)
			return
		}
		fmt.Printf("wrote %s\n", r.Path)
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d group(s) failed to write", failed)
	}
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	satellite := fs.String("satellite", "", "built-in satellite id")
	configPath := fs.String("config", "", "path to a YAML config file")
	file := fs.String("file", "", "path to an RDR HDF5 file (required)")
	out := fs.String("out", ".", "output directory for PDS files")
	debug := fs.Bool("debug", false, "enable diagnostic logging")
	fs.Parse(args)
	setDebugWriters(*debug)

	if *file == "" {
		return fmt.Errorf("--file is required")
	}
	cfg, err := resolveConfig(*satellite, *configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	scid := config.SpacecraftCode(cfg.Satellite.ID)
	written, err := hdf5reader.Dump(*file, *out, scid, cfg, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, "dump: "+format+"\n", args...)
	})
	if err != nil {
		return err
	}
	for _, p := range written {
		fmt.Printf("wrote %s\n", p)
	}
	return nil
}

func runAggr(args []string) error {
	fs := flag.NewFlagSet("aggr", flag.ExitOnError)
	file := fs.String("file", "", "path to an RDR HDF5 file (required)")
	debug := fs.Bool("debug", false, "enable diagnostic logging")
	fs.Parse(args)
	setDebugWriters(*debug)

	if *file == "" {
		return fmt.Errorf("--file is required")
	}
	if err := hdf5writer.RecomputeAggregates(*file); err != nil {
		return err
	}
	fmt.Printf("recomputed aggregates in %s\n", *file)
	return nil
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	ledgerPath := fs.String("ledger", "", "path to a granule ledger SQLite database (required)")
	runIDFlag := fs.String("run", "", "ingest run UUID (required)")
	out := fs.String("out", "", "write the HTML report to this path instead of stdout")
	fs.Parse(args)

	if *ledgerPath == "" || *runIDFlag == "" {
		return fmt.Errorf("--ledger and --run are required")
	}

	led, err := ledger.Open(*ledgerPath)
	if err != nil {
		return err
	}
	defer led.Close()

	html, err := report.Render(led, *runIDFlag)
	if err != nil {
		return err
	}

	if *out == "" {
		fmt.Println(html)
		return nil
	}
	return os.WriteFile(*out, []byte(html), 0o644)
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	file := fs.String("file", "", "path to an RDR HDF5 file (required)")
	product := fs.String("product", "", "product short_name (required)")
	granule := fs.Int("granule", 0, "granule index within the product group")
	out := fs.String("out", "", "output file path (required)")
	fs.Parse(args)

	if *file == "" || *product == "" || *out == "" {
		return fmt.Errorf("--file, --product and --out are required")
	}

	blob, err := hdf5reader.ExtractGranule(*file, *product, *granule)
	if err != nil {
		return err
	}
	return os.WriteFile(*out, blob, 0o644)
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	satellite := fs.String("satellite", "", "built-in satellite id")
	configPath := fs.String("config", "", "path to a YAML config file")
	validate := fs.Bool("validate", false, "validate the config and exit")
	show := fs.Bool("show", false, "print the loaded config")
	fs.Parse(args)

	cfg, err := resolveConfig(*satellite, *configPath)
	if err != nil {
		return err
	}

	if *validate {
		fmt.Println("config OK")
	}
	if *show || !*validate {
		fmt.Printf("%+v\n", cfg)
	}
	return nil
}
