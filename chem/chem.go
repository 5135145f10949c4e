// Package chem defines the capability surface the transformation engine
// requires from a chemistry toolkit: molecule construction and inspection,
// canonical SMILES export, and SMIRKS-style rule application. It names no
// concrete backend; internal/indigokit supplies the one this repository ships.
package chem

import "errors"

// ErrClosed is returned by any Molecule method called after Close.
var ErrClosed = errors.New("chem: molecule is closed")

// StereoKind distinguishes the two stereo descriptors the engine inspects.
type StereoKind int

const (
	// StereoTetra is tetrahedral (atom-centered) stereochemistry.
	StereoTetra StereoKind = iota
	// StereoCisTrans is bond (double-bond) stereochemistry.
	StereoCisTrans
)

// AromaticityModel selects the aromaticity perception algorithm a Toolkit
// applies. Daylight is the model spec.md's Molecule Preparer names explicitly.
type AromaticityModel int

const (
	AromaticityDaylight AromaticityModel = iota
	AromaticityGeneral
)

// Atom is the minimal per-atom view the engine needs: enough to classify
// radicals, compare stereo-relevant environments across a rule application,
// and locate an atom by its SMIRKS atom-map index.
type Atom interface {
	AtomicNumber() int
	FormalCharge() int
	Valence() int
	HeavyValence() int
	Hybridization() int
	Degree() int
	HeavyDegree() int
	ExplicitHCount() int
	ImplicitHCount() int
	TotalHCount() int
	MapIndex() int
	HasStereoSpecified(kind StereoKind) bool
	ClearStereo(kind StereoKind) error
}

// Bond is the minimal per-bond view the engine needs.
type Bond interface {
	Order() int
	BeginMapIndex() int
	EndMapIndex() int
	HasStereoSpecified() bool
}

// SMILESOptions selects the canonical-SMILES flavor. The Canonicalizer
// (package canon) is the only caller that should construct one of these with
// every field set; other callers go through canon.Canonical.
type SMILESOptions struct {
	Isomeric        bool
	AtomStereo      bool
	BondStereo      bool
	IncludeAtomMaps bool
}

// Molecule is the opaque molecular structure the engine operates on.
// Equality between two Molecules is never object identity: callers compare
// canonical SMILES (see package canon).
type Molecule interface {
	Clone() (Molecule, error)
	Clear() error
	Title() string
	SetTitle(title string)
	Atoms() []Atom
	Bonds() []Bond
	AtomByMapIndex(mapIdx int) (Atom, bool)

	PerceiveChirality() error
	AssignAromaticity(model AromaticityModel) error
	FindRingsAndBonds() error
	StripSalts() error

	CanonicalSMILES(opts SMILESOptions) (string, error)

	Close()
}

// VectorBinding is a named textual macro substituted into rule patterns
// before compilation (a SMARTS library include, spec.md §3/§4.1).
type VectorBinding struct {
	Name       string
	Definition string
}

// ProductIterator yields the products of one rule application. It is single
// pass: once exhausted, rebind the source via RuleApplier.SetSource to
// iterate again.
type ProductIterator interface {
	// Next returns the next product, or ok=false when exhausted.
	Next() (Molecule, bool)
}

// RuleApplier is a compiled, reusable pattern→replacement rule. One Rule
// compiles to exactly one RuleApplier (spec.md §3 invariant); appliers carry
// per-call mutable state and must never be shared across goroutines.
type RuleApplier interface {
	// SetAssignMapIdx controls whether products carry atom-map indices.
	// Enabled for stereochemistry-preservation diagnostics in the
	// standardizer, disabled in the enumerator (spec.md §4.2).
	SetAssignMapIdx(enabled bool)
	// SetValidateKekule disables the toolkit's (expensive, occasionally
	// incorrect) kekulization validation pass; the engine re-perceives
	// aromaticity itself on every product.
	SetValidateKekule(enabled bool)
	// SetSource binds mol as starting material and returns the number of
	// subgraph matches. Zero means Products will yield nothing.
	SetSource(mol Molecule) (matchCount int, err error)
	// Products returns a lazy iterator over this rule's products for the
	// molecule most recently bound via SetSource.
	Products() ProductIterator

	// NumReactants is the number of reactant-side fragments in the rule's
	// pattern (almost always 1 for a unimolecular tautomer/protonation rule).
	NumReactants() int
	// StartingMaterial returns the i'th reactant-side match view bound by the
	// most recent SetSource, exposing the matched, atom-mapped substructure
	// so stereo repair (engine.RemoveAlteredStereochem) can compare a mapped
	// atom's environment before and after the rule fired.
	StartingMaterial(i int) (Molecule, bool)
}

// Toolkit is the chemistry toolkit collaborator: molecule parsing and rule
// compilation. internal/indigokit is the one concrete implementation this
// repository ships; tests depend on a fake implementation instead.
type Toolkit interface {
	ParseSMILES(smi string) (Molecule, error)
	NewMolecule() (Molecule, error)

	// ExpandVectorBindings substitutes each binding's definition into pattern
	// wherever its name appears as a vector-binding reference, the way a
	// SMARTS macro library expands before compilation (spec.md §4.1).
	ExpandVectorBindings(pattern string, bindings []VectorBinding) (string, error)

	// CompileRule turns expanded SMIRKS pattern text into a reusable applier.
	// Failure is fatal to the caller; the error should be wrapped with the
	// rule's name and expanded text by the caller (ruleset.CompiledSet).
	CompileRule(expandedPattern string) (RuleApplier, error)
}
