package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"Go2NetSynth/internal/config"
	"Go2NetSynth/internal/engine/generator"
	"Go2NetSynth/internal/engine/library"
	"Go2NetSynth/internal/engine/manager"
	"Go2NetSynth/internal/factory"
	"Go2NetSynth/internal/metrics"
	"Go2NetSynth/internal/model"
	_ "Go2NetSynth/internal/output" // Registers the writers
)

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	log.Println("Starting ns-synth...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	g := &cfg.Generator
	if err := opts.apply(g); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}
	kind, err := model.ParseProtocolKind(g.Protocol)
	if err != nil {
		log.Fatalf("Invalid protocol: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Load the automata
	m := metrics.New()
	lib := library.New(m)
	if _, failures := lib.ImportDir(g.ModelsDir); len(failures) > 0 {
		log.Printf("%d model files were skipped", len(failures))
	}
	if lib.Count(kind) == 0 {
		log.Fatalf("No %s automaton could be loaded from %s", kind, g.ModelsDir)
	}

	// 3. Build the generator and the writers
	selector, err := library.NewSelector(g.Selection)
	if err != nil {
		log.Fatalf("Invalid selection policy: %v", err)
	}
	gen := generator.New(lib, g.Seed, generator.Options{
		Selector:        selector,
		ConstrainToFlow: g.ConstrainToFlow,
		Noise:           g.Noise,
		Metrics:         m,
	})
	writers, err := factory.Create(cfg)
	if err != nil {
		log.Fatalf("Failed to create writers: %v", err)
	}
	if len(writers) == 0 {
		log.Println("Warning: no writer is enabled, generated flows are discarded.")
	}
	defer factory.CloseAll(writers)

	// 4. Stop on signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Run the batch
	mgr := manager.New(gen, writers, g.NumWorkers, g.SizeOfResultChannel, m)
	stats, err := mgr.Run(ctx, manager.Job{
		Protocol: kind,
		Count:    g.Count,
		Start:    g.Start(),
		Interval: g.Interval(),
	})
	if err != nil {
		log.Printf("Batch stopped: %v", err)
		return
	}
	log.Printf("Done: %d flows, %d packets, %d failures.", stats.Generated, stats.Packets, stats.Failed)
}

// cliOptions holds the command line; set records the flags given explicitly
// so that zero values such as -seed 0 still override the config file.
type cliOptions struct {
	configPath string
	modelsDir  string
	protocol   string
	count      int
	seed       uint64
	workers    int
	set        map[string]bool
}

func parseFlags(args []string) (*cliOptions, error) {
	o := &cliOptions{set: make(map[string]bool)}
	fs := flag.NewFlagSet("ns-synth", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "configs/config.yaml", "Path to the configuration file")
	fs.StringVar(&o.modelsDir, "models", "", "Directory of model files (overrides generator.models_dir)")
	fs.StringVar(&o.protocol, "protocol", "", "Protocol to generate: TCP, UDP or ICMP (overrides generator.protocol)")
	fs.IntVar(&o.count, "count", 0, "Number of flows to generate (overrides generator.count)")
	fs.Uint64Var(&o.seed, "seed", 0, "Seed of the random generator (overrides generator.seed)")
	fs.IntVar(&o.workers, "workers", 0, "Number of sampling workers (overrides generator.num_workers)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply overrides the generator section with every flag given explicitly.
func (o *cliOptions) apply(g *config.GeneratorConfig) error {
	if o.set["models"] {
		g.ModelsDir = o.modelsDir
	}
	if o.set["protocol"] {
		g.Protocol = o.protocol
	}
	if o.set["count"] {
		if o.count < 0 {
			return fmt.Errorf("count must not be negative, got %d", o.count)
		}
		g.Count = o.count
	}
	if o.set["seed"] {
		g.Seed = o.seed
	}
	if o.set["workers"] {
		if o.workers <= 0 {
			return fmt.Errorf("workers must be positive, got %d", o.workers)
		}
		g.NumWorkers = o.workers
	}
	return nil
}
