package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cx-luo/tautenum/chem"
)

type fakeMolecule struct {
	smi string
	err error
}

func (m fakeMolecule) Clone() (chem.Molecule, error) { return m, nil }
func (m fakeMolecule) Clear() error                  { return nil }
func (m fakeMolecule) Title() string                 { return "" }
func (m fakeMolecule) SetTitle(string)               {}
func (m fakeMolecule) Atoms() []chem.Atom            { return nil }
func (m fakeMolecule) Bonds() []chem.Bond            { return nil }
func (m fakeMolecule) AtomByMapIndex(int) (chem.Atom, bool) { return nil, false }
func (m fakeMolecule) PerceiveChirality() error                      { return nil }
func (m fakeMolecule) AssignAromaticity(chem.AromaticityModel) error { return nil }
func (m fakeMolecule) FindRingsAndBonds() error                      { return nil }
func (m fakeMolecule) StripSalts() error                             { return nil }
func (m fakeMolecule) Close()                                        {}

func (m fakeMolecule) CanonicalSMILES(opts chem.SMILESOptions) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if !opts.Isomeric || !opts.AtomStereo || !opts.BondStereo {
		panic("canon must always request full isomeric/stereo flags")
	}
	return m.smi, nil
}

func TestEqual(t *testing.T) {
	a := fakeMolecule{smi: "CCO"}
	b := fakeMolecule{smi: "CCO"}
	c := fakeMolecule{smi: "CCN"}

	eq, err := Equal(a, b)
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = Equal(a, c)
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestSortBySMILES(t *testing.T) {
	mols := []chem.Molecule{
		fakeMolecule{smi: "CCN"},
		fakeMolecule{smi: "CCO"},
		fakeMolecule{smi: "CC"},
	}
	sorted, err := SortBySMILES(mols)
	require.NoError(t, err)

	var got []string
	for _, m := range sorted {
		s, _ := Canonical(m)
		got = append(got, s)
	}
	assert.Equal(t, []string{"CCO", "CCN", "CC"}, got)
}

func TestDedup_PreservesFirstOccurrenceOrder(t *testing.T) {
	mols := []chem.Molecule{
		fakeMolecule{smi: "CCO"},
		fakeMolecule{smi: "CCN"},
		fakeMolecule{smi: "CCO"},
	}
	seen := map[string]struct{}{}
	out, err := Dedup(mols, seen)
	require.NoError(t, err)
	require.Len(t, out, 2)

	s0, _ := Canonical(out[0])
	s1, _ := Canonical(out[1])
	assert.Equal(t, "CCO", s0)
	assert.Equal(t, "CCN", s1)
}

func TestDedup_IncrementalAcrossBatches(t *testing.T) {
	seen := map[string]struct{}{}
	first, err := Dedup([]chem.Molecule{fakeMolecule{smi: "CCO"}}, seen)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := Dedup([]chem.Molecule{fakeMolecule{smi: "CCO"}, fakeMolecule{smi: "CCN"}}, seen)
	require.NoError(t, err)
	require.Len(t, second, 1)
	s, _ := Canonical(second[0])
	assert.Equal(t, "CCN", s)
}
