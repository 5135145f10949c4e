// Package orchestrator drives one molecule through the full
// prepare → standardize → enumerate → (optional protonation) → sort/dedup →
// emit pipeline. Grounded on
// original_source/src/TautEnumCallableBase.cc's operator().
package orchestrator

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cx-luo/tautenum/canon"
	"github.com/cx-luo/tautenum/chem"
	"github.com/cx-luo/tautenum/engine"
	"github.com/cx-luo/tautenum/ruleset"
)

// Mode is the tagged variant selecting which stages Process runs, derived
// once from Config's boolean flags by New.
type Mode int

const (
	StandardizeOnly Mode = iota
	TautomersOnly
	ProtonationOnly
	TautomersAndProtonation
)

// Config is the flat, by-value record of every option spec's Orchestrator
// table lists.
type Config struct {
	StandardizeOnly        bool
	OriginalEnumeration    bool
	ExtendedEnumeration    bool
	EnumerateProtonation   bool
	CanonicalTautomer      bool
	IncludeInputInOutput   bool
	StripSalts             bool
	AddNumbersToName       bool
	AddSMIRKSToName        bool
	MaxTautomers           int
	NamePostfix            string
	Verbose                bool
}

// ConfigError reports a Config whose flags are incomplete or contradictory.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "orchestrator: invalid configuration: " + e.Reason }

// Rules bundles the (already loaded and expanded, not-yet-compiled) rule
// sets Orchestrator needs. Standardize is always required; Enumerate is
// required unless Config.StandardizeOnly is set; ProtStandardize/ProtEnumerate are required only when Config.EnumerateProtonation
// is set. Each Orchestrator compiles its own CompiledSet per rule set, so two
// Orchestrators never share an applier (spec.md §5).
type Rules struct {
	Standardize     *ruleset.RuleSet
	Enumerate       *ruleset.RuleSet
	ProtStandardize *ruleset.RuleSet
	ProtEnumerate   *ruleset.RuleSet
}

// Logger is the minimal diagnostic sink Orchestrator needs; package logging
// provides the zap-backed implementation used outside tests.
type Logger interface {
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Orchestrator runs Config's pipeline for a single worker. It is not safe
// for concurrent use: worker.Pool gives each goroutine its own instance.
type Orchestrator struct {
	toolkit chem.Toolkit
	cfg     Config
	mode    Mode
	log     Logger

	standardize     *ruleset.CompiledSet
	enumerate       *ruleset.CompiledSet
	protStandardize *ruleset.CompiledSet
	protEnumerate   *ruleset.CompiledSet
}

// New validates cfg, derives its Mode, and compiles rules into this
// Orchestrator's own CompiledSets.
func New(toolkit chem.Toolkit, rules Rules, cfg Config, log Logger) (*Orchestrator, error) {
	if rules.Standardize == nil {
		return nil, &ConfigError{Reason: "standardization rule set is required"}
	}

	mode := StandardizeOnly
	if !cfg.StandardizeOnly {
		if cfg.OriginalEnumeration == cfg.ExtendedEnumeration {
			if cfg.OriginalEnumeration {
				return nil, &ConfigError{Reason: "original_enumeration and extended_enumeration are mutually exclusive"}
			}
			return nil, &ConfigError{Reason: "exactly one of original_enumeration or extended_enumeration must be set unless standardise_only"}
		}
		if rules.Enumerate == nil {
			return nil, &ConfigError{Reason: "enumeration rule set is required unless standardise_only"}
		}
		switch {
		case cfg.EnumerateProtonation:
			mode = TautomersAndProtonation
		default:
			mode = TautomersOnly
		}
	} else if cfg.EnumerateProtonation {
		mode = ProtonationOnly
	}

	if (mode == ProtonationOnly || mode == TautomersAndProtonation) &&
		(rules.ProtStandardize == nil || rules.ProtEnumerate == nil) {
		return nil, &ConfigError{Reason: "protonation rule sets are required when enumerate_protonation is set"}
	}

	if log == nil {
		log = noopLogger{}
	}

	o := &Orchestrator{toolkit: toolkit, cfg: cfg, mode: mode, log: log}
	o.standardize = ruleset.NewCompiledSet(rules.Standardize, toolkit)
	if rules.Enumerate != nil {
		o.enumerate = ruleset.NewCompiledSet(rules.Enumerate, toolkit)
	}
	if rules.ProtStandardize != nil {
		o.protStandardize = ruleset.NewCompiledSet(rules.ProtStandardize, toolkit)
	}
	if rules.ProtEnumerate != nil {
		o.protEnumerate = ruleset.NewCompiledSet(rules.ProtEnumerate, toolkit)
	}
	return o, nil
}

// Result is Process's per-molecule outcome.
type Result struct {
	// Molecules is the final, sorted, deduplicated set to emit.
	Molecules []chem.Molecule
	// TautomersTruncated records whether tautomer enumeration hit
	// MaxTautomers and fell back to the standardized molecule alone.
	TautomersTruncated bool
	// ProtonationsTruncated records the same for protonation enumeration.
	ProtonationsTruncated bool
}

// verboseLog returns o.log as an engine.Logger when Config.Verbose is set,
// so Standardize/Enumerate emit per-rule audit lines (spec.md §4.7); nil
// otherwise, which silences them entirely.
func (o *Orchestrator) verboseLog() engine.Logger {
	if !o.cfg.Verbose {
		return nil
	}
	return o.log
}

func (o *Orchestrator) standardizeConfig(stripSalts bool) engine.Config {
	return engine.Config{StripSalts: stripSalts, AddRuleNameToTitle: o.cfg.AddSMIRKSToName, Log: o.verboseLog()}
}

func (o *Orchestrator) enumerateConfig() engine.Config {
	return engine.Config{AddRuleNameToTitle: o.cfg.AddSMIRKSToName, MaxOutputMolecules: o.cfg.MaxTautomers, Log: o.verboseLog()}
}

// Process runs the full pipeline on inMol (prepared by the caller; see
// package prepare) and returns the set to emit for it.
func (o *Orchestrator) Process(inMol chem.Molecule) (Result, error) {
	stdResult, err := engine.Standardize(inMol, o.standardize, o.standardizeConfig(o.cfg.StripSalts))
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: standardize: %w", err)
	}
	if stdResult.CycleDetected {
		o.log.Warnf("standardizer detected a tautomer cycle for %q; the cycling product was discarded and the remaining rules ran to a fixed point", inMol.Title())
	}
	stdMol := stdResult.Molecule

	if o.mode == StandardizeOnly {
		return o.finish(inMol, []chem.Molecule{stdMol}, false, false)
	}

	var outMols []chem.Molecule
	var tautomersTruncated bool

	if o.mode == TautomersOnly || o.mode == TautomersAndProtonation {
		set, err := engine.Enumerate(stdMol, o.enumerate, o.enumerateConfig())
		var tooMany *engine.TooManyOutputsError
		switch {
		case errors.As(err, &tooMany):
			o.log.Warnf("maximum number of tautomers generated for %q so none generated", inMol.Title())
			tautomersTruncated = true
			fallback, cerr := stdMol.Clone()
			if cerr != nil {
				return Result{}, fmt.Errorf("orchestrator: cloning standardized fallback: %w", cerr)
			}
			if o.cfg.AddSMIRKSToName {
				fallback.SetTitle(inMol.Title() + " __MAX_TAUTS__")
			}
			outMols = []chem.Molecule{fallback}
		case err != nil:
			return Result{}, fmt.Errorf("orchestrator: enumerate: %w", err)
		default:
			outMols = set.Molecules
		}
	} else {
		outMols = []chem.Molecule{stdMol}
	}

	var protonationsTruncated bool
	if o.mode == ProtonationOnly || o.mode == TautomersAndProtonation {
		outMols, protonationsTruncated, err = o.runProtonation(inMol.Title(), stdMol, outMols)
		if err != nil {
			return Result{}, err
		}
	}

	return o.finish(inMol, outMols, tautomersTruncated, protonationsTruncated)
}

// runProtonation implements TautEnumCallableBase::operator()'s two protonation
// paths: standalone (when tautomers is empty) or per-tautomer (otherwise).
// Process always passes at least one molecule (in ProtonationOnly mode, the
// standardized molecule alone), so from Process the per-tautomer path runs.
func (o *Orchestrator) runProtonation(inputTitle string, stdMol chem.Molecule, tautomers []chem.Molecule) ([]chem.Molecule, bool, error) {
	if len(tautomers) == 0 {
		protStd, err := engine.Standardize(stdMol, o.protStandardize, o.standardizeConfig(true))
		if err != nil {
			return nil, false, fmt.Errorf("orchestrator: protonation standardize: %w", err)
		}
		set, err := engine.Enumerate(protStd.Molecule, o.protEnumerate, o.enumerateConfig())
		var tooMany *engine.TooManyOutputsError
		if errors.As(err, &tooMany) {
			o.log.Warnf("maximum number of ionisation states generated for %q so none generated", inputTitle)
			return nil, true, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("orchestrator: protonation enumerate: %w", err)
		}
		return set.Molecules, false, nil
	}

	var protOut []chem.Molecule
	var truncated bool
	for i, taut := range tautomers {
		// Salts were already stripped by the standardizer that produced taut.
		protStd, err := engine.Standardize(taut, o.protStandardize, o.standardizeConfig(false))
		if err != nil {
			return nil, false, fmt.Errorf("orchestrator: protonation standardize tautomer %d: %w", i, err)
		}
		set, err := engine.Enumerate(protStd.Molecule, o.protEnumerate, o.enumerateConfig())
		var tooMany *engine.TooManyOutputsError
		if errors.As(err, &tooMany) {
			o.log.Warnf("maximum number of ionisation states generated for %q tautomer %d so none generated", inputTitle, i)
			truncated = true
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("orchestrator: protonation enumerate tautomer %d: %w", i, err)
		}
		protOut = append(protOut, set.Molecules...)
	}
	return protOut, truncated, nil
}

func (o *Orchestrator) finish(inMol chem.Molecule, outMols []chem.Molecule, tautomersTruncated, protonationsTruncated bool) (Result, error) {
	sorted, err := sortAndDedup(outMols)
	if err != nil {
		return Result{}, err
	}

	// canonical_tautomer: emit only the first element (post-sort) of the
	// tautomer set (spec.md §4.7).
	if o.cfg.CanonicalTautomer && len(sorted) > 1 {
		sorted = sorted[:1]
	}

	if o.cfg.AddNumbersToName {
		for i, m := range sorted {
			m.SetTitle(m.Title() + o.cfg.NamePostfix + strconv.Itoa(i+1))
		}
	}

	// include_input_in_output: emit the input molecule verbatim before the
	// tautomer set, outside the sort/dedup/numbering pass above so it is
	// never mistaken for one of its own derived tautomers (spec.md §4.7).
	if o.cfg.IncludeInputInOutput {
		inputCopy, err := inMol.Clone()
		if err != nil {
			return Result{}, fmt.Errorf("orchestrator: cloning input for include_input_in_output: %w", err)
		}
		sorted = append([]chem.Molecule{inputCopy}, sorted...)
	}

	return Result{
		Molecules:             sorted,
		TautomersTruncated:    tautomersTruncated,
		ProtonationsTruncated: protonationsTruncated,
	}, nil
}

// sortAndDedup is sort_and_uniquify_molecules: stable descending
// canonical-SMILES order with adjacent duplicates removed. Re-applied here
// because protonation can reintroduce duplicates across tautomer branches
// that the enumerator's own dedup never saw together.
func sortAndDedup(mols []chem.Molecule) ([]chem.Molecule, error) {
	sorted, err := canon.SortBySMILES(mols)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(sorted))
	return canon.Dedup(sorted, seen)
}

// CanonicalTautomer is a single-call convenience wrapper equivalent to
// original_source's canonical_tautomer(): standardize, enumerate, and return
// only the first element of the final sorted set.
func CanonicalTautomer(mol chem.Molecule, standardize, enumerate *ruleset.CompiledSet) (chem.Molecule, error) {
	stdResult, err := engine.Standardize(mol, standardize, engine.Config{})
	if err != nil {
		return nil, err
	}
	set, err := engine.Enumerate(stdResult.Molecule, enumerate, engine.Config{})
	if err != nil {
		return nil, err
	}
	sorted, err := sortAndDedup(set.Molecules)
	if err != nil {
		return nil, err
	}
	if len(sorted) == 0 {
		return stdResult.Molecule, nil
	}
	return sorted[0], nil
}

// EnumerateTautomerSMILES is a single-call convenience wrapper equivalent to
// original_source's enumerate_tautomers_smiles(): parse smi, standardize,
// enumerate, and return the final sorted set's canonical SMILES strings.
func EnumerateTautomerSMILES(toolkit chem.Toolkit, smi string, standardize, enumerate *ruleset.CompiledSet) ([]string, error) {
	mol, err := toolkit.ParseSMILES(smi)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: parsing %q: %w", smi, err)
	}
	defer mol.Close()

	stdResult, err := engine.Standardize(mol, standardize, engine.Config{})
	if err != nil {
		return nil, err
	}
	set, err := engine.Enumerate(stdResult.Molecule, enumerate, engine.Config{})
	if err != nil {
		return nil, err
	}
	sorted, err := sortAndDedup(set.Molecules)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(sorted))
	for i, m := range sorted {
		out[i], err = canon.Canonical(m)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

type noopLogger struct{}

func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Debugf(string, ...any) {}
