package ruleset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cx-luo/tautenum/chem"
)

// fakeToolkit exercises only the ruleset package's dependency surface
// (ExpandVectorBindings, CompileRule); it never parses real SMILES.
type fakeToolkit struct {
	compileErr error
}

func (f *fakeToolkit) ParseSMILES(string) (chem.Molecule, error) { panic("unused") }
func (f *fakeToolkit) NewMolecule() (chem.Molecule, error)       { panic("unused") }

func (f *fakeToolkit) ExpandVectorBindings(pattern string, bindings []chem.VectorBinding) (string, error) {
	out := pattern
	for _, b := range bindings {
		out = strings.ReplaceAll(out, "$"+b.Name, b.Definition)
	}
	return out, nil
}

func (f *fakeToolkit) CompileRule(expanded string) (chem.RuleApplier, error) {
	if f.compileErr != nil {
		return nil, f.compileErr
	}
	return &fakeApplier{pattern: expanded}, nil
}

type fakeApplier struct{ pattern string }

func (a *fakeApplier) SetAssignMapIdx(bool)                        {}
func (a *fakeApplier) SetValidateKekule(bool)                      {}
func (a *fakeApplier) SetSource(chem.Molecule) (int, error)        { return 0, nil }
func (a *fakeApplier) Products() chem.ProductIterator              { return nil }
func (a *fakeApplier) NumReactants() int                           { return 1 }
func (a *fakeApplier) StartingMaterial(int) (chem.Molecule, bool)  { return nil, false }

func TestLoadRules_NamedAndAutoNamed(t *testing.T) {
	r := strings.NewReader(`
# comment line, ignored

[#6:1]=[#8:2] CarbonylToEnol
[#7:1]-[#1:2]
`)
	rules, err := LoadRules(r)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "CarbonylToEnol", rules[0].Name)
	assert.Equal(t, "[#6:1]=[#8:2]", rules[0].RawPattern)

	assert.Equal(t, "Smk2", rules[1].Name)
	assert.Equal(t, "[#7:1]-[#1:2]", rules[1].RawPattern)
}

func TestLoadRules_SkipsBlankAndComments(t *testing.T) {
	r := strings.NewReader("\n  \n# nothing here\n[#6]>>[#6] X\n")
	rules, err := LoadRules(r)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "X", rules[0].Name)
}

func TestLoadVectorBindings_DedupesIdenticalWithWarning(t *testing.T) {
	r := strings.NewReader(`
acid [OH]C=O
acid [OH]C=O
base [NH2]
`)
	bindings, warnings, err := LoadVectorBindings(r)
	require.NoError(t, err)
	require.Len(t, bindings, 2)
	require.Len(t, warnings, 1)
	assert.Equal(t, "acid", warnings[0].Name)
}

func TestLoadVectorBindings_ConflictingIsFatal(t *testing.T) {
	r := strings.NewReader(`
acid [OH]C=O
acid [OH]CC=O
`)
	_, _, err := LoadVectorBindings(r)
	require.Error(t, err)

	var conflict *ConflictingBindingError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "acid", conflict.Name)
}

func TestExpand_SubstitutesBindingsIntoEachRule(t *testing.T) {
	tk := &fakeToolkit{}
	rules := []Rule{{Name: "R1", RawPattern: "$acid>>$base"}}
	bindings := []VectorBinding{
		{Name: "acid", Definition: "[OH]C=O"},
		{Name: "base", Definition: "[O-]C=O"},
	}

	rs, err := Expand(tk, rules, bindings)
	require.NoError(t, err)
	require.Len(t, rs.Rules, 1)
	assert.Equal(t, "[OH]C=O>>[O-]C=O", rs.Rules[0].ExpandedPattern)
	assert.Equal(t, bindings, rs.Bindings)
}

func TestLoad_EndToEnd(t *testing.T) {
	tk := &fakeToolkit{}
	rulesR := strings.NewReader("$acid>>$base Neutralize\n")
	bindingsR := strings.NewReader("acid [OH]C=O\nbase [O-]C=O\n")

	rs, warnings, err := Load(tk, rulesR, bindingsR)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, rs.Rules, 1)
	assert.Equal(t, "Neutralize", rs.Rules[0].Name)
	assert.Equal(t, "[OH]C=O>>[O-]C=O", rs.Rules[0].ExpandedPattern)
}

func TestLoad_NilBindingsReaderSkipsBindingStep(t *testing.T) {
	tk := &fakeToolkit{}
	rulesR := strings.NewReader("[#6]>>[#6] NoOp\n")

	rs, warnings, err := Load(tk, rulesR, nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, rs.Rules, 1)
	assert.Equal(t, "[#6]>>[#6]", rs.Rules[0].ExpandedPattern)
}

func TestCompiledSet_CompilesLazilyAndCaches(t *testing.T) {
	calls := 0
	tk := &countingToolkit{fakeToolkit: &fakeToolkit{}, calls: &calls}
	rs := &RuleSet{Rules: []Rule{
		{Name: "A", ExpandedPattern: "[#6]>>[#6]"},
		{Name: "B", ExpandedPattern: "[#7]>>[#7]"},
	}}

	cs := NewCompiledSet(rs, tk)
	assert.Equal(t, 2, cs.Len())
	assert.Equal(t, 0, calls, "CompileRule must not run until Applier is requested")

	a1, err := cs.Applier(0)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	a2, err := cs.Applier(0)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second request for the same rule must hit the cache")
	assert.Same(t, a1, a2)

	_, err = cs.Applier(1)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCompiledSet_WrapsCompileErrorWithRuleName(t *testing.T) {
	tk := &fakeToolkit{compileErr: assert.AnError}
	rs := &RuleSet{Rules: []Rule{{Name: "Bad", ExpandedPattern: "(("}}}
	cs := NewCompiledSet(rs, tk)

	_, err := cs.Applier(0)
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "Bad", compileErr.Name)
	assert.ErrorIs(t, err, assert.AnError)
}

type countingToolkit struct {
	*fakeToolkit
	calls *int
}

func (c *countingToolkit) CompileRule(expanded string) (chem.RuleApplier, error) {
	*c.calls++
	return c.fakeToolkit.CompileRule(expanded)
}
