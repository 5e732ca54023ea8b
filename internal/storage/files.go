// Package storage lays out job files on the volume shared with the engine.
package storage

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/rna"
	"github.com/google/uuid"
)

// ErrOutsideRoot is returned for paths that escape the shared volume.
var ErrOutsideRoot = errors.New("path outside shared volume")

const (
	inputsDir  = "engine_inputs"
	outputsDir = "engine_outputs"
)

// Files resolves and manipulates paths below a root directory.
type Files struct {
	root string
}

// New returns a Files rooted at root, creating the input and output
// directories when missing.
func New(root string) (*Files, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve shared volume: %w", err)
	}
	for _, d := range []string{inputsDir, outputsDir} {
		if err := os.MkdirAll(filepath.Join(abs, d), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}
	return &Files{root: abs}, nil
}

func (f *Files) Root() string { return f.root }

// InputPath is where the engine expects the normalized input of a job.
func (f *Files) InputPath(uid uuid.UUID) string {
	return filepath.Join(f.root, inputsDir, uid.String()+".dotseq")
}

// Stem is the common prefix of every artifact of one conformation.
func (f *Files) Stem(uid uuid.UUID, seed int) string {
	return filepath.Join(f.root, outputsDir, fmt.Sprintf("%s_%d", uid, seed))
}

func (f *Files) DotseqPath(uid uuid.UUID, seed int) string { return f.Stem(uid, seed) + ".dotseq" }
func (f *Files) SVGPath(uid uuid.UUID, seed int) string    { return f.Stem(uid, seed) + ".svg" }
func (f *Files) ArcPath(uid uuid.UUID, seed int) string    { return f.Stem(uid, seed) + "_arc.svg" }

// WriteInput stores the job input for the engine and returns its path.
func (f *Files) WriteInput(uid uuid.UUID, name, sequence, structure string) (string, error) {
	p := f.InputPath(uid)
	if err := WriteDotseq(p, name, sequence, structure); err != nil {
		return "", err
	}
	return p, nil
}

// WriteDotseq writes a structure file, replacing any existing one.
func WriteDotseq(path, name, sequence, structure string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(rna.FormatDotseq(name, sequence, structure)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadDotseq reads a structure file written by WriteDotseq.
func ReadDotseq(path string) (name, sequence, structure string, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return rna.ParseDotseq(string(b))
}

type engineOutput struct {
	DotBracket string `json:"dotBracket"`
}

// TakeEngineStructure returns the dotBracket field of an engine JSON file and
// deletes the file. The file is only removed once it was decoded.
func (f *Files) TakeEngineStructure(path string) (string, error) {
	p, err := f.contained(path)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("read engine output: %w", err)
	}
	var out engineOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("decode engine output: %w", err)
	}
	if out.DotBracket == "" {
		return "", fmt.Errorf("engine output %s has no dotBracket", filepath.Base(p))
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove engine output: %w", err)
	}
	return out.DotBracket, nil
}

// RemoveJobFiles deletes the input and every per-conformation artifact of a
// job together with any extra paths. Missing files are not an error.
func (f *Files) RemoveJobFiles(uid uuid.UUID, extra ...string) error {
	matches, err := filepath.Glob(filepath.Join(f.root, outputsDir, uid.String()+"_*"))
	if err != nil {
		return fmt.Errorf("glob job files: %w", err)
	}
	paths := append([]string{f.InputPath(uid)}, matches...)
	paths = append(paths, extra...)

	var errs []error
	for _, p := range paths {
		cp, err := f.contained(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(cp); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteArchive zips the given files into w, each stored under its base name.
// Empty paths are skipped.
func (f *Files) WriteArchive(w io.Writer, paths []string) error {
	zw := zip.NewWriter(w)
	seen := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		cp, err := f.contained(p)
		if err != nil {
			return err
		}
		name := filepath.Base(cp)
		if seen[name] {
			continue
		}
		seen[name] = true
		if err := addToZip(zw, cp, name); err != nil {
			return err
		}
	}
	return zw.Close()
}

func addToZip(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer src.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return nil
}

// Rel returns p relative to the root, the form in which artifact paths are
// shown to API clients. Empty and foreign paths yield "".
func (f *Files) Rel(p string) string {
	if p == "" {
		return ""
	}
	cp, err := f.contained(p)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(f.root, cp)
	if err != nil {
		return ""
	}
	return filepath.ToSlash(rel)
}

// contained resolves p against the root and rejects anything outside it.
func (f *Files) contained(p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(f.root, p)
	}
	p = filepath.Clean(p)
	if p != f.root && !strings.HasPrefix(p, f.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return p, nil
}
