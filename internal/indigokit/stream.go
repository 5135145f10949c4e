package indigokit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/cx-luo/tautenum/chem"
)

// Format is a recognized molecule file format, detected from a path's
// extension per spec.md §6 ("Detection by file extension").
type Format int

const (
	FormatSMILES Format = iota
	FormatSDF
)

// DetectFormat maps a file extension to a Format; unrecognized extensions
// default to FormatSMILES, matching the teacher's permissive loader
// behavior for plain-text molecule streams.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sdf", ".mol", ".molfile":
		return FormatSDF
	default:
		return FormatSMILES
	}
}

// FileReader reads molecules one at a time from a SMILES or SDF stream.
// It is not itself concurrency-safe; worker.NewLockedReader wraps it before
// handing it to a worker.Pool.
type FileReader struct {
	tk     *Toolkit
	format Format
	scan   *bufio.Scanner
	f      *os.File
	n      atomic.Int64
}

// OpenReader opens path for reading, detecting its format from the
// extension. The returned FileReader must be closed with Close once the
// stream is exhausted.
func OpenReader(tk *Toolkit, path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("indigokit: opening input %q: %w", path, err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &FileReader{tk: tk, format: DetectFormat(path), scan: scanner, f: f}, nil
}

// ReadNext implements worker.MoleculeReader. SDF records are delimited by a
// "$$$$" terminator line per the standard SDF convention; each whole record
// is handed to the toolkit's molfile loader. SMILES streams are one
// molecule per line, optionally followed by a whitespace-separated title.
func (r *FileReader) ReadNext() (chem.Molecule, bool, error) {
	switch r.format {
	case FormatSDF:
		return r.readSDFRecord()
	default:
		return r.readSMILESLine()
	}
}

func (r *FileReader) readSMILESLine() (chem.Molecule, bool, error) {
	for r.scan.Scan() {
		line := strings.TrimSpace(r.scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		mol, err := r.tk.ParseSMILES(fields[0])
		if err != nil {
			return nil, false, fmt.Errorf("indigokit: parsing record %d: %w", r.n.Add(1), err)
		}
		if len(fields) > 1 {
			mol.SetTitle(strings.Join(fields[1:], " "))
		}
		return mol, true, nil
	}
	return nil, false, r.scan.Err()
}

func (r *FileReader) readSDFRecord() (chem.Molecule, bool, error) {
	var lines []string
	for r.scan.Scan() {
		line := r.scan.Text()
		if strings.TrimSpace(line) == "$$$$" {
			mol, err := r.tk.ParseSMILES(strings.Join(lines, "\n"))
			if err != nil {
				return nil, false, fmt.Errorf("indigokit: parsing record %d: %w", r.n.Add(1), err)
			}
			return mol, true, nil
		}
		lines = append(lines, line)
	}
	if err := r.scan.Err(); err != nil {
		return nil, false, err
	}
	if len(lines) == 0 {
		return nil, false, nil
	}
	mol, err := r.tk.ParseSMILES(strings.Join(lines, "\n"))
	if err != nil {
		return nil, false, fmt.Errorf("indigokit: parsing trailing record: %w", err)
	}
	return mol, true, nil
}

// Close releases the underlying file handle.
func (r *FileReader) Close() error { return r.f.Close() }

// FileWriter writes molecules as canonical SMILES, one per line, per
// spec.md §6 ("SMILES output must suppress atom-map indices and force
// canonical ordering"). opts controls isomeric/atom-map rendering.
type FileWriter struct {
	w    io.Writer
	f    *os.File
	opts chem.SMILESOptions
}

// CreateWriter creates (truncating) path for output.
func CreateWriter(path string, opts chem.SMILESOptions) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("indigokit: creating output %q: %w", path, err)
	}
	return &FileWriter{w: bufio.NewWriter(f), f: f, opts: opts}, nil
}

// Write implements worker.MoleculeWriter.
func (w *FileWriter) Write(mol chem.Molecule) error {
	smi, err := mol.CanonicalSMILES(w.opts)
	if err != nil {
		return fmt.Errorf("indigokit: rendering canonical SMILES: %w", err)
	}
	_, err = fmt.Fprintf(w.w, "%s\t%s\n", smi, mol.Title())
	return err
}

// Close flushes and closes the underlying file, including the buffered
// writer wrapping it.
func (w *FileWriter) Close() error {
	if bw, ok := w.w.(*bufio.Writer); ok {
		if err := bw.Flush(); err != nil {
			w.f.Close()
			return err
		}
	}
	return w.f.Close()
}
