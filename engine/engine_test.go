package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cx-luo/tautenum/chem"
	"github.com/cx-luo/tautenum/ruleset"
)

// The fake toolkit below models molecules as bare string "states" and rules
// as state-transition tables encoded directly in the rule's expanded
// pattern text ("SRC>>DST1|DST2"), letting Standardize/Enumerate's control
// flow be exercised without any real chemistry.

type fakeAtom struct {
	atomicNum int
	valence   int
	charge    int
	mapIdx    int

	tetraStereo    bool
	degree         int
	heavyDegree    int
	hybridization  int
	totalH         int
	clearedStereo  bool
}

func (a *fakeAtom) AtomicNumber() int  { return a.atomicNum }
func (a *fakeAtom) FormalCharge() int  { return a.charge }
func (a *fakeAtom) Valence() int       { return a.valence }
func (a *fakeAtom) HeavyValence() int  { return a.valence }
func (a *fakeAtom) Hybridization() int { return a.hybridization }
func (a *fakeAtom) Degree() int        { return a.degree }
func (a *fakeAtom) HeavyDegree() int   { return a.heavyDegree }
func (a *fakeAtom) ExplicitHCount() int { return 0 }
func (a *fakeAtom) ImplicitHCount() int { return 0 }
func (a *fakeAtom) TotalHCount() int    { return a.totalH }
func (a *fakeAtom) MapIndex() int       { return a.mapIdx }

func (a *fakeAtom) HasStereoSpecified(kind chem.StereoKind) bool {
	return kind == chem.StereoTetra && a.tetraStereo
}

func (a *fakeAtom) ClearStereo(kind chem.StereoKind) error {
	if kind == chem.StereoTetra {
		a.tetraStereo = false
		a.clearedStereo = true
	}
	return nil
}

type fakeMolecule struct {
	title string
	state string
	atoms []chem.Atom

	stripSaltsCalled bool
	closed           bool
}

// createdMolecules records every fakeMolecule newFakeMolecule has ever
// produced, across every test, purely so tests can assert on Close
// discipline (e.g. that an overflowing Enumerate call closes every handle
// it accumulated). Tests that use it snapshot its length before acting and
// only inspect the molecules created after that point.
var createdMolecules []*fakeMolecule

func newFakeMolecule(state string) *fakeMolecule {
	m := &fakeMolecule{title: state, state: state}
	createdMolecules = append(createdMolecules, m)
	return m
}

func (m *fakeMolecule) Clone() (chem.Molecule, error) {
	cp := *m
	return &cp, nil
}
func (m *fakeMolecule) Clear() error          { m.atoms = nil; return nil }
func (m *fakeMolecule) Title() string         { return m.title }
func (m *fakeMolecule) SetTitle(title string) { m.title = title }
func (m *fakeMolecule) Atoms() []chem.Atom     { return m.atoms }
func (m *fakeMolecule) Bonds() []chem.Bond     { return nil }

func (m *fakeMolecule) AtomByMapIndex(mapIdx int) (chem.Atom, bool) {
	for _, a := range m.atoms {
		if a.MapIndex() == mapIdx {
			return a, true
		}
	}
	return nil, false
}

func (m *fakeMolecule) PerceiveChirality() error                      { return nil }
func (m *fakeMolecule) AssignAromaticity(chem.AromaticityModel) error { return nil }
func (m *fakeMolecule) FindRingsAndBonds() error                      { return nil }
func (m *fakeMolecule) StripSalts() error                             { m.stripSaltsCalled = true; return nil }
func (m *fakeMolecule) Close()                                        { m.closed = true }

func (m *fakeMolecule) CanonicalSMILES(opts chem.SMILESOptions) (string, error) {
	if !opts.Isomeric || !opts.AtomStereo || !opts.BondStereo {
		panic("engine must always canonicalize with full isomeric/stereo flags")
	}
	return m.state, nil
}

// fakeApplier implements a single state-transition rule: "SRC>>DST1|DST2".
type fakeApplier struct {
	src  string
	dsts []string

	source  *fakeMolecule
	nextIdx int

	assignMapIdx bool
	validateKek  bool

	startingMaterial chem.Molecule
}

func newFakeApplier(expandedPattern string) *fakeApplier {
	parts := strings.SplitN(expandedPattern, ">>", 2)
	a := &fakeApplier{src: parts[0]}
	if len(parts) == 2 && parts[1] != "" {
		a.dsts = strings.Split(parts[1], "|")
	}
	return a
}

func (a *fakeApplier) SetAssignMapIdx(enabled bool)   { a.assignMapIdx = enabled }
func (a *fakeApplier) SetValidateKekule(enabled bool) { a.validateKek = enabled }

func (a *fakeApplier) SetSource(mol chem.Molecule) (int, error) {
	fm := mol.(*fakeMolecule)
	a.source = fm
	a.nextIdx = 0
	if fm.state != a.src {
		return 0, nil
	}
	return len(a.dsts), nil
}

func (a *fakeApplier) Products() chem.ProductIterator { return a }

func (a *fakeApplier) Next() (chem.Molecule, bool) {
	if a.source == nil || a.source.state != a.src || a.nextIdx >= len(a.dsts) {
		return nil, false
	}
	dst := a.dsts[a.nextIdx]
	a.nextIdx++

	product := newFakeMolecule(dst)
	product.title = a.source.title
	if strings.Contains(dst, "RAD") {
		product.atoms = []chem.Atom{&fakeAtom{atomicNum: 6, valence: 3, charge: 0}}
	}
	return product, true
}

func (a *fakeApplier) NumReactants() int { return 1 }

func (a *fakeApplier) StartingMaterial(i int) (chem.Molecule, bool) {
	if i != 0 || a.startingMaterial == nil {
		return a.startingMaterial, a.startingMaterial != nil
	}
	return a.startingMaterial, true
}

type fakeToolkit struct{}

func (fakeToolkit) ParseSMILES(smi string) (chem.Molecule, error) { return newFakeMolecule(smi), nil }
func (fakeToolkit) NewMolecule() (chem.Molecule, error)           { return newFakeMolecule(""), nil }
func (fakeToolkit) ExpandVectorBindings(pattern string, _ []chem.VectorBinding) (string, error) {
	return pattern, nil
}
func (fakeToolkit) CompileRule(expanded string) (chem.RuleApplier, error) {
	return newFakeApplier(expanded), nil
}

func compiledFromTransitions(t *testing.T, transitions ...string) *ruleset.CompiledSet {
	t.Helper()
	rules := make([]ruleset.Rule, len(transitions))
	for i, tr := range transitions {
		rules[i] = ruleset.Rule{Name: tr, ExpandedPattern: tr}
	}
	rs := &ruleset.RuleSet{Rules: rules}
	return ruleset.NewCompiledSet(rs, fakeToolkit{})
}

func TestStandardize_ConvergesToFixedPoint(t *testing.T) {
	compiled := compiledFromTransitions(t, "A>>B", "B>>C")
	result, err := Standardize(newFakeMolecule("A"), compiled, Config{})
	require.NoError(t, err)
	assert.False(t, result.CycleDetected)

	smi, _ := result.Molecule.CanonicalSMILES(chem.SMILESOptions{Isomeric: true, AtomStereo: true, BondStereo: true})
	assert.Equal(t, "C", smi)
}

func TestStandardize_DetectsCycleAndReturnsLastProduct(t *testing.T) {
	compiled := compiledFromTransitions(t, "A>>B", "B>>A")
	result, err := Standardize(newFakeMolecule("A"), compiled, Config{})
	require.NoError(t, err)
	assert.True(t, result.CycleDetected)

	smi, _ := result.Molecule.CanonicalSMILES(chem.SMILESOptions{Isomeric: true, AtomStereo: true, BondStereo: true})
	assert.Equal(t, "B", smi, "B>>A cycles back to A, so the last committed product B is returned")
}

// TestStandardize_CycleOnlyBailsOutOfItsOwnRule exercises spec.md:103's
// pseudocode comment ("break  # loop detected, bail out of this rule"):
// a cycle detected on one rule must not abort the whole standardization
// pass, and rules listed after the cycling rule must still get to fire
// against whatever the working molecule's state is when the sweep reaches
// them. Rule order is A>>B, B>>A, B>>Z starting from A: rule 1 advances the
// state to B; rule 2 tries to go back to A, which is already seen, so its
// cycle is discarded and the working molecule stays at B; rule 3 then still
// matches B and advances to Z. A buggy implementation that returns from
// Standardize the instant rule 2's cycle is detected would report A (the
// discarded, stale cycling candidate) instead of Z, and would never run
// rule 3 at all.
func TestStandardize_CycleOnlyBailsOutOfItsOwnRule(t *testing.T) {
	compiled := compiledFromTransitions(t, "A>>B", "B>>A", "B>>Z")
	result, err := Standardize(newFakeMolecule("A"), compiled, Config{})
	require.NoError(t, err)
	assert.True(t, result.CycleDetected)

	smi, _ := result.Molecule.CanonicalSMILES(chem.SMILESOptions{Isomeric: true, AtomStereo: true, BondStereo: true})
	assert.Equal(t, "Z", smi, "rule 3 must still fire after rule 2's cycle is discarded, not skipped")
}

func TestStandardize_AddsRuleNameToTitleWhenConfigured(t *testing.T) {
	compiled := compiledFromTransitions(t, "A>>B")
	result, err := Standardize(newFakeMolecule("A"), compiled, Config{AddRuleNameToTitle: true})
	require.NoError(t, err)
	assert.Contains(t, result.Molecule.Title(), "A>>B")
}

func TestStandardize_StripsSaltsOnlyWhenConfigured(t *testing.T) {
	compiled := compiledFromTransitions(t, "A>>B")
	result, err := Standardize(newFakeMolecule("A"), compiled, Config{StripSalts: true})
	require.NoError(t, err)
	assert.True(t, result.Molecule.(*fakeMolecule).stripSaltsCalled)

	compiled2 := compiledFromTransitions(t, "A>>B")
	result2, err := Standardize(newFakeMolecule("A"), compiled2, Config{})
	require.NoError(t, err)
	assert.False(t, result2.Molecule.(*fakeMolecule).stripSaltsCalled)
}

func TestEnumerate_CollectsBranchingClosure(t *testing.T) {
	// A -> B, A -> C, B -> D: BFS closure should yield {A, B, C, D}.
	compiled := compiledFromTransitions(t, "A>>B|C", "B>>D")
	set, err := Enumerate(newFakeMolecule("A"), compiled, Config{})
	require.NoError(t, err)

	var states []string
	for _, m := range set.Molecules {
		smi, _ := m.CanonicalSMILES(chem.SMILESOptions{Isomeric: true, AtomStereo: true, BondStereo: true})
		states = append(states, smi)
	}
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, states)
}

func TestEnumerate_InputIsAlwaysIncluded(t *testing.T) {
	compiled := compiledFromTransitions(t, "A>>")
	set, err := Enumerate(newFakeMolecule("A"), compiled, Config{})
	require.NoError(t, err)
	require.Len(t, set.Molecules, 1)
	smi, _ := set.Molecules[0].CanonicalSMILES(chem.SMILESOptions{Isomeric: true, AtomStereo: true, BondStereo: true})
	assert.Equal(t, "A", smi)
}

func TestEnumerate_DiscardsProductsIntroducingNewRadicals(t *testing.T) {
	compiled := compiledFromTransitions(t, "A>>RAD")
	set, err := Enumerate(newFakeMolecule("A"), compiled, Config{})
	require.NoError(t, err)
	require.Len(t, set.Molecules, 1, "the radical-introducing product must be discarded")
}

func TestEnumerate_TooManyOutputsErrorDiscardsPartialSet(t *testing.T) {
	compiled := compiledFromTransitions(t, "A>>B|C|D")
	_, err := Enumerate(newFakeMolecule("A"), compiled, Config{MaxOutputMolecules: 2})
	require.Error(t, err)

	var tooMany *TooManyOutputsError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 2, tooMany.Limit)
}

// TestEnumerate_TooManyOutputsErrorClosesAccumulatedProducts covers the
// overflow path's resource discipline: every molecule Enumerate itself
// accumulated into results before hitting the cap is a live toolkit handle
// under internal/indigokit and must be closed when the partial set is
// discarded, same as the radical-guard and already-seen discard paths.
// The caller's own input molecule is the one exception: its lifetime
// belongs to the caller (the orchestrator still clones it for its
// __MAX_TAUTS__ fallback), so Enumerate must leave it open.
func TestEnumerate_TooManyOutputsErrorClosesAccumulatedProducts(t *testing.T) {
	compiled := compiledFromTransitions(t, "A>>B|C|D")
	input := newFakeMolecule("A")
	before := len(createdMolecules)

	_, err := Enumerate(input, compiled, Config{MaxOutputMolecules: 2})
	require.Error(t, err)

	produced := createdMolecules[before:]
	require.NotEmpty(t, produced, "the rule must have produced at least one candidate before the cap tripped")
	for _, m := range produced {
		assert.True(t, m.closed, "accumulated product %q must be closed when TooManyOutputsError discards the partial set", m.state)
	}
	assert.False(t, input.closed, "Enumerate must not close the caller's own input molecule")
}

type fakeLogger struct{ lines []string }

func (l *fakeLogger) Debugf(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestEnumerate_LogsRadicalRejectionWhenVerbose(t *testing.T) {
	compiled := compiledFromTransitions(t, "A>>RAD")
	log := &fakeLogger{}
	_, err := Enumerate(newFakeMolecule("A"), compiled, Config{Log: log})
	require.NoError(t, err)
	require.NotEmpty(t, log.lines)
	assert.Contains(t, log.lines[0], "radical")
}

func TestEnumerate_NoLoggingWhenLogNil(t *testing.T) {
	compiled := compiledFromTransitions(t, "A>>RAD")
	_, err := Enumerate(newFakeMolecule("A"), compiled, Config{})
	require.NoError(t, err)
}

func TestRemoveAlteredStereochem_ClearsMismatchedAtomStereo(t *testing.T) {
	reactantAtom := &fakeAtom{mapIdx: 1, tetraStereo: true, atomicNum: 6, degree: 4, heavyDegree: 3, hybridization: 3, totalH: 1}
	productAtom := &fakeAtom{mapIdx: 1, tetraStereo: true, atomicNum: 6, degree: 3, heavyDegree: 3, hybridization: 2, totalH: 0}

	sm := newFakeMolecule("reactant")
	sm.atoms = []chem.Atom{reactantAtom}
	product := newFakeMolecule("product")
	product.atoms = []chem.Atom{productAtom}

	applier := &fakeApplier{startingMaterial: sm}
	err := RemoveAlteredStereochem(applier, product)
	require.NoError(t, err)
	assert.True(t, productAtom.clearedStereo)
	assert.False(t, productAtom.tetraStereo)
}

func TestRemoveAlteredStereochem_LeavesMatchingEnvironmentAlone(t *testing.T) {
	reactantAtom := &fakeAtom{mapIdx: 1, tetraStereo: true, atomicNum: 6, degree: 4, heavyDegree: 3, hybridization: 3, totalH: 1}
	productAtom := &fakeAtom{mapIdx: 1, tetraStereo: true, atomicNum: 6, degree: 4, heavyDegree: 3, hybridization: 3, totalH: 1}

	sm := newFakeMolecule("reactant")
	sm.atoms = []chem.Atom{reactantAtom}
	product := newFakeMolecule("product")
	product.atoms = []chem.Atom{productAtom}

	applier := &fakeApplier{startingMaterial: sm}
	err := RemoveAlteredStereochem(applier, product)
	require.NoError(t, err)
	assert.False(t, productAtom.clearedStereo)
	assert.True(t, productAtom.tetraStereo)
}

func TestRemoveAlteredStereochem_IgnoresAtomsWithoutStereoOrMapIndex(t *testing.T) {
	reactantAtom := &fakeAtom{mapIdx: 0, tetraStereo: false}
	sm := newFakeMolecule("reactant")
	sm.atoms = []chem.Atom{reactantAtom}
	product := newFakeMolecule("product")

	applier := &fakeApplier{startingMaterial: sm}
	err := RemoveAlteredStereochem(applier, product)
	require.NoError(t, err)
}
