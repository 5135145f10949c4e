package indigokit

/*
#cgo CFLAGS: -I${SRCDIR}/../../3rd

#cgo windows,amd64 LDFLAGS: -L${SRCDIR}/../../3rd/windows-x86_64 -lindigo
#cgo windows,386 LDFLAGS: -L${SRCDIR}/../../3rd/windows-i386 -lindigo
#cgo linux,amd64 LDFLAGS: -L${SRCDIR}/../../3rd/linux-x86_64 -lindigo -Wl,-rpath,${SRCDIR}/../../3rd/linux-x86_64
#cgo linux,arm64 LDFLAGS: -L${SRCDIR}/../../3rd/linux-aarch64 -lindigo -Wl,-rpath,${SRCDIR}/../../3rd/linux-aarch64
#cgo darwin,amd64 LDFLAGS: -L${SRCDIR}/../../3rd/darwin-x86_64 -lindigo -Wl,-rpath,${SRCDIR}/../../3rd/darwin-x86_64
#cgo darwin,arm64 LDFLAGS: -L${SRCDIR}/../../3rd/darwin-aarch64 -lindigo -Wl,-rpath,${SRCDIR}/../../3rd/darwin-aarch64

#include <stdlib.h>
#include "indigo.h"
*/
import "C"

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/cx-luo/tautenum/chem"
)

// Toolkit is one worker's handle onto the Indigo library: its own session id
// so rule appliers and molecules it creates never cross into another
// worker's session (spec.md §5). Build one per worker with New, never share
// a *Toolkit across goroutines.
type Toolkit struct {
	s *session
}

// New allocates a fresh Indigo session for one worker. Init must have
// already run successfully in the process.
func New() (*Toolkit, error) {
	s, err := newSession()
	if err != nil {
		return nil, fmt.Errorf("indigokit: new toolkit: %w", err)
	}
	return &Toolkit{s: s}, nil
}

// Close releases this Toolkit's session. Safe to call once, at worker exit.
func (t *Toolkit) Close() { t.s.close() }

func (t *Toolkit) activate() { t.s.activate() }

var _ chem.Toolkit = (*Toolkit)(nil)

func (t *Toolkit) ParseSMILES(smi string) (chem.Molecule, error) {
	t.activate()
	cSMI := C.CString(smi)
	defer C.free(unsafe.Pointer(cSMI))

	handle := int(C.indigoLoadMoleculeFromString(cSMI))
	if handle < 0 {
		return nil, fmt.Errorf("indigokit: parsing SMILES %q: %s", smi, lastError())
	}
	return newMolecule(t, handle), nil
}

func (t *Toolkit) NewMolecule() (chem.Molecule, error) {
	t.activate()
	handle := int(C.indigoCreateMolecule())
	if handle < 0 {
		return nil, fmt.Errorf("indigokit: creating molecule: %s", lastError())
	}
	return newMolecule(t, handle), nil
}

// ExpandVectorBindings substitutes each binding's name, wherever it appears
// as a "$name" macro reference in pattern, with its definition. Grounded on
// DACLIB::expand_vector_bindings (original_source/src/smirks_helper_fns.cc),
// which performs the same longest-name-first literal substitution rather
// than a regex engine, so two bindings where one name prefixes another never
// resolve ambiguously.
func (t *Toolkit) ExpandVectorBindings(pattern string, bindings []chem.VectorBinding) (string, error) {
	out := pattern
	sorted := append([]chem.VectorBinding(nil), bindings...)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if len(sorted[j].Name) > len(sorted[i].Name) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	for _, b := range sorted {
		out = strings.ReplaceAll(out, "$"+b.Name, b.Definition)
	}
	return out, nil
}

// CompileRule loads expandedPattern as an Indigo reaction SMARTS and wraps it
// as a chem.RuleApplier. Compile failure is fatal to the caller per
// spec.md §4.2/§7; ruleset.CompiledSet wraps this error with the rule's name
// and expanded text.
func (t *Toolkit) CompileRule(expandedPattern string) (chem.RuleApplier, error) {
	t.activate()
	cPattern := C.CString(expandedPattern)
	defer C.free(unsafe.Pointer(cPattern))

	handle := int(C.indigoLoadReactionSmartsFromString(cPattern))
	if handle < 0 {
		return nil, fmt.Errorf("indigokit: compiling rule: %s", lastError())
	}
	return newApplier(t, handle), nil
}
