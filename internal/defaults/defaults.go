// Package defaults embeds the built-in rule and vector-binding files used
// when the CLI is run without explicit --standardise-smirks-file /
// --enumerate-smirks-file / --vector-bindings-file overrides (spec.md §6).
// The files themselves are illustrative starter data, not a reproduction of
// any third-party rule file; loading goes through ruleset.LoadRulesFS /
// ruleset.LoadVectorBindingsFS, the same loaders user-supplied files use, via
// the embedded fs.FS below.
package defaults

import (
	"embed"
	"io/fs"

	"github.com/cx-luo/tautenum/chem"
	"github.com/cx-luo/tautenum/orchestrator"
	"github.com/cx-luo/tautenum/ruleset"
)

//go:embed data/*.smirks data/*.txt
var data embed.FS

const (
	standardizeFile     = "data/standardize.smirks"
	enumerateFile       = "data/enumerate.smirks"
	protStandardizeFile = "data/prot_standardize.smirks"
	protEnumerateFile   = "data/prot_enumerate.smirks"
	vectorBindingsFile  = "data/vector_bindings.txt"
)

// FS exposes the embedded data directory directly, for callers that want to
// load a subset of the default files with their own io/fs.FS-based tooling.
func FS() fs.FS { return data }

// VectorBindings loads the default vector-binding dictionary.
func VectorBindings() ([]chem.VectorBinding, []ruleset.DuplicateBindingWarning, error) {
	return ruleset.LoadVectorBindingsFS(data, vectorBindingsFile)
}

// StandardizeRules loads the default standardization rule set (uncompiled,
// unexpanded — callers still run ruleset.Expand/Load).
func StandardizeRules() ([]ruleset.Rule, error) {
	return ruleset.LoadRulesFS(data, standardizeFile)
}

// EnumerateRules loads the default enumeration rule set.
func EnumerateRules() ([]ruleset.Rule, error) {
	return ruleset.LoadRulesFS(data, enumerateFile)
}

// ProtStandardizeRules loads the default protonation-standardization rule set.
func ProtStandardizeRules() ([]ruleset.Rule, error) {
	return ruleset.LoadRulesFS(data, protStandardizeFile)
}

// ProtEnumerateRules loads the default protonation-enumeration rule set.
func ProtEnumerateRules() ([]ruleset.Rule, error) {
	return ruleset.LoadRulesFS(data, protEnumerateFile)
}

// Load builds every ruleset.RuleSet the orchestrator needs from the embedded
// defaults, expanding each against the embedded vector bindings. needProt
// controls whether the protonation-state rule sets are loaded at all, so a
// run without protonation enumeration never loads them.
func Load(toolkit chem.Toolkit, needProt bool) (orchestrator.Rules, []ruleset.DuplicateBindingWarning, error) {
	bindings, warnings, err := VectorBindings()
	if err != nil {
		return orchestrator.Rules{}, nil, err
	}

	var out orchestrator.Rules

	stdRaw, err := StandardizeRules()
	if err != nil {
		return orchestrator.Rules{}, nil, err
	}
	if out.Standardize, err = ruleset.Expand(toolkit, stdRaw, bindings); err != nil {
		return orchestrator.Rules{}, nil, err
	}

	enumRaw, err := EnumerateRules()
	if err != nil {
		return orchestrator.Rules{}, nil, err
	}
	if out.Enumerate, err = ruleset.Expand(toolkit, enumRaw, bindings); err != nil {
		return orchestrator.Rules{}, nil, err
	}

	if !needProt {
		return out, warnings, nil
	}

	protStdRaw, err := ProtStandardizeRules()
	if err != nil {
		return orchestrator.Rules{}, nil, err
	}
	if out.ProtStandardize, err = ruleset.Expand(toolkit, protStdRaw, bindings); err != nil {
		return orchestrator.Rules{}, nil, err
	}

	protEnumRaw, err := ProtEnumerateRules()
	if err != nil {
		return orchestrator.Rules{}, nil, err
	}
	if out.ProtEnumerate, err = ruleset.Expand(toolkit, protEnumRaw, bindings); err != nil {
		return orchestrator.Rules{}, nil, err
	}

	return out, warnings, nil
}
