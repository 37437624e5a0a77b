package table

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/sanonone/kektorviz/pkg/core/types"
)

// ReadOptions controls how CSV columns are typed on read.
type ReadOptions struct {
	// VectorColumns are decoded with ParseVector. Each must be present.
	VectorColumns []string
	// FloatColumns are decoded with strconv.ParseFloat. Missing ones are
	// ignored so outputs of earlier runs can be read back.
	FloatColumns []string
}

// ReadCSV decodes a headered CSV stream. Every other column is kept as text.
// It stops at the first malformed vector (ParseError) or at the first vector
// whose length differs from row 0 (DimensionMismatchError).
func ReadCSV(r io.Reader, opts ReadOptions) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, types.Inputf("input is empty, expected a header row")
		}
		return nil, types.Inputf("reading header: %v", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	kinds := make([]Kind, len(header))
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if seen[name] {
			return nil, types.Inputf("duplicate column %q in header", name)
		}
		seen[name] = true
	}
	for _, name := range opts.VectorColumns {
		i := indexOf(header, name)
		if i < 0 {
			return nil, types.Inputf("missing required column %q", name)
		}
		kinds[i] = Vector
	}
	for _, name := range opts.FloatColumns {
		if i := indexOf(header, name); i >= 0 {
			kinds[i] = Float
		}
	}

	texts := make([][]string, len(header))
	vecs := make([][][]float64, len(header))
	floats := make([][]float64, len(header))
	dims := make([]int, len(header))

	row := 0
	for ; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, types.Inputf("malformed CSV: %v", err)
		}
		for i, cell := range rec {
			switch kinds[i] {
			case Text:
				texts[i] = append(texts[i], cell)
			case Vector:
				v, err := ParseVector(cell)
				if err != nil {
					return nil, &types.ParseError{Row: row, Column: header[i], Value: cell, Err: err}
				}
				if row == 0 {
					dims[i] = len(v)
				} else if len(v) != dims[i] {
					return nil, &types.DimensionMismatchError{Row: row, Want: dims[i], Got: len(v)}
				}
				vecs[i] = append(vecs[i], v)
			case Float:
				f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
				if err != nil {
					return nil, &types.ParseError{Row: row, Column: header[i], Value: cell, Err: err}
				}
				floats[i] = append(floats[i], f)
			}
		}
	}

	t := New(row)
	for i, name := range header {
		var err error
		switch kinds[i] {
		case Text:
			err = t.AddText(name, orEmpty(texts[i], row))
		case Vector:
			err = t.AddVectors(name, vecs[i])
		case Float:
			err = t.AddFloats(name, floats[i])
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func orEmpty(s []string, n int) []string {
	if s == nil {
		return make([]string, n)
	}
	return s
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// WriteCSV encodes t with a header row. Vector cells use FormatVector and
// floats FormatFloat.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}

	rec := make([]string, len(t.cols))
	for r := 0; r < t.rows; r++ {
		for i, c := range t.cols {
			switch c.Kind {
			case Text:
				rec[i] = c.Text[r]
			case Vector:
				rec[i] = FormatVector(c.Vectors[r])
			case Float:
				rec[i] = FormatFloat(c.Floats[r])
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// IsCompressed reports whether a path is treated as zstd-compressed.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// ReadFile opens a CSV file, transparently decompressing ".zst" paths.
func ReadFile(path string, opts ReadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.Inputf("cannot open input table: %v", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if IsCompressed(path) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, types.Inputf("cannot open zstd stream: %v", err)
		}
		defer dec.Close()
		r = dec
	}
	return ReadCSV(r, opts)
}

// WriteFile writes t to path through a temporary file in the same directory
// that is renamed into place only after a successful write, so a failed run
// never leaves a truncated table behind.
func WriteFile(path string, t *Table) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp output: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if IsCompressed(path) {
		enc, encErr := zstd.NewWriter(bw)
		if encErr != nil {
			return fmt.Errorf("failed to create zstd writer: %w", encErr)
		}
		if err = WriteCSV(enc, t); err != nil {
			enc.Close()
			return fmt.Errorf("failed to write table: %w", err)
		}
		if err = enc.Close(); err != nil {
			return fmt.Errorf("failed to finish zstd stream: %w", err)
		}
	} else if err = WriteCSV(bw, t); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}

	if err = bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
