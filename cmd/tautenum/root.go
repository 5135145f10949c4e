package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cx-luo/tautenum/chem"
	"github.com/cx-luo/tautenum/internal/defaults"
	"github.com/cx-luo/tautenum/internal/indigokit"
	"github.com/cx-luo/tautenum/logging"
	"github.com/cx-luo/tautenum/orchestrator"
	"github.com/cx-luo/tautenum/prepare"
	"github.com/cx-luo/tautenum/ruleset"
	"github.com/cx-luo/tautenum/worker"
)

// flags mirrors spec.md §6's CLI surface table field-for-field.
type flags struct {
	inputPath  string
	outputPath string

	standardizeFile string
	enumerateFile   string
	bindingsFile    string

	standardizeOnly      bool
	originalEnumeration  bool
	extendedEnumeration  bool
	enumerateProtonation bool
	canonicalTautomer    bool
	includeInputInOutput bool
	stripSalts           bool
	addNumbersToName     bool
	addSMIRKSToName      bool
	verbose              bool

	maxTautomers uint
	numThreads   int
	namePostfix  string

	logFormat string
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "tautenum",
		Short:         "Standardize and enumerate molecular tautomers and protonation states",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}
	cmd.SetContext(context.Background())

	pf := cmd.Flags()
	pf.StringVarP(&f.inputPath, "input-molecule-file", "I", "", "input molecule file (required)")
	pf.StringVarP(&f.outputPath, "output-molecule-file", "O", "", "output molecule file (required)")
	pf.StringVarP(&f.standardizeFile, "standardise-smirks-file", "S", "", "standardization SMIRKS file (embedded default if omitted)")
	pf.StringVarP(&f.enumerateFile, "enumerate-smirks-file", "E", "", "enumeration SMIRKS file (embedded default if omitted)")
	pf.StringVarP(&f.bindingsFile, "vector-bindings-file", "V", "", "vector-bindings file (embedded default if omitted)")

	pf.BoolVar(&f.standardizeOnly, "standardise-only", false, "stop after standardization; emit one molecule")
	pf.BoolVar(&f.originalEnumeration, "original-enumeration", false, "select original enumeration (loads the same default enumeration rule set as --extended-enumeration)")
	pf.BoolVar(&f.extendedEnumeration, "extended-enumeration", false, "select extended enumeration (loads the same default enumeration rule set as --original-enumeration)")
	pf.BoolVar(&f.enumerateProtonation, "enumerate-protonation", false, "additionally run protonation standardize + enumerate")
	pf.BoolVar(&f.canonicalTautomer, "canonical-tautomer", false, "emit only the first (post-sort) tautomer")
	pf.BoolVar(&f.includeInputInOutput, "include-input-in-output", false, "emit the input molecule before the tautomer set")
	pf.BoolVar(&f.stripSalts, "strip-salts", false, "retain only the largest connected component")
	pf.BoolVar(&f.addNumbersToName, "add-numbers-to-name", false, "append <postfix><ordinal> to each emitted title")
	pf.BoolVar(&f.addSMIRKSToName, "add-smirks-to-name", false, "append each applied rule's name to the product title")
	pf.BoolVar(&f.verbose, "verbose", false, "emit per-rule audit lines")

	pf.UintVar(&f.maxTautomers, "max-tautomers", 256, "output-size ceiling per molecule")
	pf.IntVar(&f.numThreads, "num-threads", 1, "worker count; <=0 means hardware_concurrency + n")
	pf.StringVar(&f.namePostfix, "name-postfix", "_Taut", "postfix used by --add-numbers-to-name")
	pf.StringVar(&f.logFormat, "log-format", "console", "log encoding: json|console")

	cmd.MarkFlagRequired("input-molecule-file")
	cmd.MarkFlagRequired("output-molecule-file")

	return cmd
}

func run(ctx context.Context, f *flags) error {
	if f.originalEnumeration && f.extendedEnumeration {
		return fmt.Errorf("--original-enumeration and --extended-enumeration are mutually exclusive")
	}

	runID := uuid.New().String()
	level := "info"
	if f.verbose {
		level = "debug"
	}
	log, err := logging.New(logging.Config{Level: level, Format: f.logFormat})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	log = log.Named("tautenum").With(logging.String("run_id", runID))

	licensePath := os.Getenv(indigokit.LicenseEnvVar)
	if licensePath == "" {
		return fmt.Errorf("environment variable %s must name a readable toolkit license file", indigokit.LicenseEnvVar)
	}
	if err := indigokit.Init(indigokit.MemPoolMutexedUnboundedCache); err != nil {
		return fmt.Errorf("initializing chemistry toolkit: %w", err)
	}

	numWorkers := resolveNumThreads(f.numThreads)
	log.Info("starting run",
		logging.String("input", f.inputPath),
		logging.String("output", f.outputPath),
		logging.Int("num_workers", numWorkers),
		logging.Bool("enumerate_protonation", f.enumerateProtonation))

	cfg := orchestrator.Config{
		StandardizeOnly:      f.standardizeOnly,
		OriginalEnumeration:  f.originalEnumeration,
		ExtendedEnumeration:  f.extendedEnumeration,
		EnumerateProtonation: f.enumerateProtonation,
		CanonicalTautomer:    f.canonicalTautomer,
		IncludeInputInOutput: f.includeInputInOutput,
		StripSalts:           f.stripSalts,
		AddNumbersToName:     f.addNumbersToName,
		AddSMIRKSToName:      f.addSMIRKSToName,
		MaxTautomers:         int(f.maxTautomers),
		NamePostfix:          f.namePostfix,
		Verbose:              f.verbose,
	}
	if !cfg.StandardizeOnly && !cfg.OriginalEnumeration && !cfg.ExtendedEnumeration {
		cfg.OriginalEnumeration = true
	}

	loaderTk, err := indigokit.New()
	if err != nil {
		return fmt.Errorf("allocating loader toolkit: %w", err)
	}
	defer loaderTk.Close()

	rules, warnings, err := loadRules(loaderTk, f, cfg.EnumerateProtonation)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	for _, w := range warnings {
		log.Warn(w.String())
	}

	reader, err := indigokit.OpenReader(loaderTk, f.inputPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	writer, err := indigokit.CreateWriter(f.outputPath, chem.SMILESOptions{
		Isomeric:   true,
		AtomStereo: true,
		BondStereo: true,
	})
	if err != nil {
		return err
	}
	defer writer.Close()

	pool := &worker.Pool{
		NumWorkers: numWorkers,
		Reader:     reader,
		Writer:     writer,
		NewOrch: func() (*orchestrator.Orchestrator, error) {
			tk, err := indigokit.New()
			if err != nil {
				return nil, err
			}
			return orchestrator.New(tk, rules, cfg, logging.OrchestratorAdapter{L: log})
		},
		Prepare: func(mol chem.Molecule) (chem.Molecule, error) {
			// A fresh Toolkit per call rather than a pool-wide shared one:
			// internal/indigokit.Toolkit wraps a single Indigo session and
			// must never be driven by more than one goroutine (spec.md §5).
			tk, err := indigokit.New()
			if err != nil {
				return nil, fmt.Errorf("allocating prepare toolkit: %w", err)
			}
			defer tk.Close()
			return prepare.Molecule(mol, tk)
		},
		OnError: func(mol chem.Molecule, err error) error {
			log.Error("molecule failed", logging.String("title", mol.Title()), logging.Err(err))
			return nil
		},
		Log: log,
	}

	if err := pool.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	log.Info("run complete")
	return nil
}

func loadRules(tk chem.Toolkit, f *flags, needProt bool) (orchestrator.Rules, []ruleset.DuplicateBindingWarning, error) {
	if f.standardizeFile == "" && f.enumerateFile == "" && f.bindingsFile == "" {
		return defaults.Load(tk, needProt)
	}

	var bindings []chem.VectorBinding
	var warnings []ruleset.DuplicateBindingWarning
	if f.bindingsFile != "" {
		r, err := os.Open(f.bindingsFile)
		if err != nil {
			return orchestrator.Rules{}, nil, err
		}
		defer r.Close()
		bindings, warnings, err = ruleset.LoadVectorBindings(r)
		if err != nil {
			return orchestrator.Rules{}, nil, err
		}
	} else {
		var err error
		bindings, warnings, err = defaults.VectorBindings()
		if err != nil {
			return orchestrator.Rules{}, nil, err
		}
	}

	standardizeRaw, err := openRulesOrDefault(f.standardizeFile, defaults.StandardizeRules)
	if err != nil {
		return orchestrator.Rules{}, nil, err
	}
	var out orchestrator.Rules
	if out.Standardize, err = ruleset.Expand(tk, standardizeRaw, bindings); err != nil {
		return orchestrator.Rules{}, nil, err
	}

	enumerateRaw, err := openRulesOrDefault(f.enumerateFile, defaults.EnumerateRules)
	if err != nil {
		return orchestrator.Rules{}, nil, err
	}
	if out.Enumerate, err = ruleset.Expand(tk, enumerateRaw, bindings); err != nil {
		return orchestrator.Rules{}, nil, err
	}

	if !needProt {
		return out, warnings, nil
	}
	protStdRaw, err := defaults.ProtStandardizeRules()
	if err != nil {
		return orchestrator.Rules{}, nil, err
	}
	if out.ProtStandardize, err = ruleset.Expand(tk, protStdRaw, bindings); err != nil {
		return orchestrator.Rules{}, nil, err
	}
	protEnumRaw, err := defaults.ProtEnumerateRules()
	if err != nil {
		return orchestrator.Rules{}, nil, err
	}
	if out.ProtEnumerate, err = ruleset.Expand(tk, protEnumRaw, bindings); err != nil {
		return orchestrator.Rules{}, nil, err
	}
	return out, warnings, nil
}

func openRulesOrDefault(path string, fallback func() ([]ruleset.Rule, error)) ([]ruleset.Rule, error) {
	if path == "" {
		return fallback()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ruleset.LoadRules(f)
}

// resolveNumThreads implements spec.md §6's "<=0 means hardware_concurrency + n"
// rule: a non-positive n leaves |n| cores free instead of naming a worker count.
func resolveNumThreads(n int) int {
	if n > 0 {
		return n
	}
	workers := runtime.NumCPU() + n
	if workers < 1 {
		workers = 1
	}
	return workers
}
