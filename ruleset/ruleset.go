// Package ruleset loads SMIRKS rule and vector-binding text, expands macros,
// and lazily compiles rules into chem.RuleApplier instances. Loading is
// grounded on DACLIB::read_smirks_from_istream / read_vbs_from_istream and
// DACLIB::expand_vector_bindings (original_source/src/smirks_helper_fns.cc).
package ruleset

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	"github.com/cx-luo/tautenum/chem"
)

// VectorBinding is a named textual macro substituted into rule patterns.
type VectorBinding = chem.VectorBinding

// Rule is a named (pattern, replacement) pair after vector-binding expansion.
// Its applier is compiled lazily and cached on the owning CompiledSet, never
// on the Rule itself, so a RuleSet stays safely shareable across workers.
type Rule struct {
	Name            string
	RawPattern      string
	ExpandedPattern string
}

// RuleSet is an ordered, immutable sequence of Rules plus the vector bindings
// they were expanded with. Order is semantically significant: standardization
// applies rules in listed order (spec.md §3). A RuleSet has no mutable state
// and is safe to share, read-only, across every worker.
type RuleSet struct {
	Rules    []Rule
	Bindings []VectorBinding
}

// CompileError reports a failure to compile one rule's expanded pattern.
type CompileError struct {
	Name     string
	Expanded string
	Err      error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("ruleset: failed to compile rule %q (expanded: %s): %v", e.Name, e.Expanded, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// ConflictingBindingError is the fatal error LoadVectorBindings returns when
// two vector bindings share a name but disagree on definition.
type ConflictingBindingError struct {
	Name string
	A, B string
}

func (e *ConflictingBindingError) Error() string {
	return fmt.Sprintf("ruleset: vector binding %q has conflicting definitions %q and %q", e.Name, e.A, e.B)
}

// DuplicateBindingWarning is returned (never as an error) alongside a
// successful load whenever an identical binding was redefined; callers should
// log it at Warn level per spec.md §4.1.
type DuplicateBindingWarning struct {
	Name string
}

func (w DuplicateBindingWarning) String() string {
	return fmt.Sprintf("duplicate definition for vector binding %q (identical, one copy kept)", w.Name)
}

// LoadVectorBindings reads a vector-binding file: `<name> <definition>` per
// line, `#`-comments and blank lines ignored. Identical-name duplicates are
// deduplicated with a warning; conflicting duplicates are a fatal error.
func LoadVectorBindings(r io.Reader) ([]VectorBinding, []DuplicateBindingWarning, error) {
	pairs, err := readTokenPairs(r)
	if err != nil {
		return nil, nil, err
	}

	bindings := make([]VectorBinding, 0, len(pairs))
	for _, p := range pairs {
		bindings = append(bindings, VectorBinding{Name: p[0], Definition: p[1]})
	}
	return dedupeBindings(bindings)
}

// LoadVectorBindingsFS is LoadVectorBindings reading from a named file inside
// fsys, so the same loader serves both user-supplied files (os.DirFS) and the
// embedded default vector-binding dictionaries.
func LoadVectorBindingsFS(fsys fs.FS, name string) ([]VectorBinding, []DuplicateBindingWarning, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return LoadVectorBindings(f)
}

func dedupeBindings(bindings []VectorBinding) ([]VectorBinding, []DuplicateBindingWarning, error) {
	sort.SliceStable(bindings, func(i, j int) bool { return bindings[i].Name < bindings[j].Name })

	var warnings []DuplicateBindingWarning
	out := bindings[:0:0]
	for i := 0; i < len(bindings); i++ {
		b := bindings[i]
		if len(out) > 0 && out[len(out)-1].Name == b.Name {
			prev := out[len(out)-1]
			if prev.Definition == b.Definition {
				warnings = append(warnings, DuplicateBindingWarning{Name: b.Name})
				continue
			}
			return nil, nil, &ConflictingBindingError{Name: b.Name, A: prev.Definition, B: b.Definition}
		}
		out = append(out, b)
	}
	return out, warnings, nil
}

// LoadRules reads a SMIRKS rule file: `<pattern> [<name>]` per line,
// `#`-comments and blank lines ignored. A one-token line gets an
// auto-generated name `Smk<ordinal>` (1-based); a two-token line's second
// token is the name.
func LoadRules(r io.Reader) ([]Rule, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var rules []Rule
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 1:
			rules = append(rules, Rule{
				Name:       fmt.Sprintf("Smk%d", len(rules)+1),
				RawPattern: fields[0],
			})
		default:
			rules = append(rules, Rule{
				Name:       fields[1],
				RawPattern: fields[0],
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// LoadRulesFS is LoadRules reading from a named file inside fsys.
func LoadRulesFS(fsys fs.FS, name string) ([]Rule, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadRules(f)
}

// readTokenPairs tokenizes each non-comment, non-blank line into exactly two
// whitespace/tab-separated fields (run-collapsed); lines with fewer than two
// fields are skipped, matching DACLIB::read_vbs_from_istream.
func readTokenPairs(r io.Reader) ([][2]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pairs [][2]string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pairs = append(pairs, [2]string{fields[0], fields[1]})
	}
	return pairs, scanner.Err()
}

// Expand runs ExpandVectorBindings over every rule's RawPattern, producing
// the RuleSet that Load callers should use from then on. Rules and bindings
// are copied in so the returned RuleSet owns its slices.
func Expand(toolkit chem.Toolkit, rules []Rule, bindings []VectorBinding) (*RuleSet, error) {
	expanded := make([]Rule, len(rules))
	for i, rule := range rules {
		text, err := toolkit.ExpandVectorBindings(rule.RawPattern, bindings)
		if err != nil {
			return nil, fmt.Errorf("ruleset: expanding %q: %w", rule.Name, err)
		}
		expanded[i] = Rule{Name: rule.Name, RawPattern: rule.RawPattern, ExpandedPattern: text}
	}
	bindingsCopy := append([]VectorBinding(nil), bindings...)
	return &RuleSet{Rules: expanded, Bindings: bindingsCopy}, nil
}

// Load is the common case: read rules and bindings, expand, return a RuleSet
// ready to be compiled (once per worker) via NewCompiledSet.
func Load(toolkit chem.Toolkit, rulesR, bindingsR io.Reader) (*RuleSet, []DuplicateBindingWarning, error) {
	var bindings []VectorBinding
	var warnings []DuplicateBindingWarning
	if bindingsR != nil {
		var err error
		bindings, warnings, err = LoadVectorBindings(bindingsR)
		if err != nil {
			return nil, nil, err
		}
	}
	rules, err := LoadRules(rulesR)
	if err != nil {
		return nil, nil, err
	}
	rs, err := Expand(toolkit, rules, bindings)
	if err != nil {
		return nil, nil, err
	}
	return rs, warnings, nil
}
