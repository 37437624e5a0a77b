package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sanonone/kektorviz/pkg/table"
)

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	rng := rand.New(rand.NewSource(5))
	var b strings.Builder
	b.WriteString("id,statement,embedding\n")
	for i := 0; i < 30; i++ {
		v := make([]float64, 6)
		for j := range v {
			v[j] = float64(i%2)*5 + rng.NormFloat64()
		}
		fmt.Fprintf(&b, "%d,text %d,\"%s\"\n", i, i, table.FormatVector(v))
	}
	path := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReduceCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir)
	out := filepath.Join(dir, "out.csv.zst")
	prom := filepath.Join(dir, "kektorviz.prom")

	var stdout, stderr bytes.Buffer
	code := run([]string{"reduce", "-input", in, "-output", out, "-dims", "2", "-neighbors", "5", "-k-density", "5", "-metrics-file", prom}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "density: min") {
		t.Errorf("missing density summary in output: %s", stdout.String())
	}

	tbl, err := table.ReadFile(out, table.ReadOptions{FloatColumns: []string{"coord_1", "coord_2", "density"}})
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if got := strings.Join(tbl.Names(), ","); got != "id,statement,coord_1,coord_2,density" {
		t.Errorf("unexpected columns: %s", got)
	}
	if _, err := os.Stat(prom); err != nil {
		t.Errorf("metrics textfile not written: %v", err)
	}
}

func TestReduceCommandConfigFile(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir)
	out := filepath.Join(dir, "out.csv")
	cfgPath := filepath.Join(dir, "kektorviz.yaml")
	os.WriteFile(cfgPath, []byte("coord_prefix: \"axis_\"\nprojector:\n  dims: 1\n  neighbors: 5\ndensity:\n  k: 5\n"), 0o644)

	var stdout, stderr bytes.Buffer
	// -dims on the command line wins over the file.
	code := run([]string{"reduce", "-input", in, "-output", out, "-config", cfgPath, "-dims", "2"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr.String())
	}
	tbl, err := table.ReadFile(out, table.ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(tbl.Names(), ","); got != "id,statement,axis_1,axis_2,density" {
		t.Errorf("unexpected columns: %s", got)
	}
}

func TestReduceCommandFailures(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir)

	testCases := []struct {
		name string
		args []string
		code int
	}{
		{"NoCommand", nil, 2},
		{"UnknownCommand", []string{"plot"}, 2},
		{"MissingOutput", []string{"reduce", "-input", in}, 1},
		{"MissingInput", []string{"reduce", "-input", filepath.Join(dir, "nope.csv"), "-output", filepath.Join(dir, "x.csv")}, 1},
		{"WrongColumn", []string{"reduce", "-input", in, "-output", filepath.Join(dir, "x.csv"), "-vector-column", "vec"}, 1},
		{"TooManyNeighbors", []string{"reduce", "-input", in, "-output", filepath.Join(dir, "x.csv"), "-neighbors", "40"}, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tc.args, &stdout, &stderr); code != tc.code {
				t.Errorf("exit code %d, want %d (stderr: %s)", code, tc.code, stderr.String())
			}
			if tc.code != 0 && stderr.Len() == 0 {
				t.Error("expected a diagnostic on stderr")
			}
		})
	}
	if _, err := os.Stat(filepath.Join(dir, "x.csv")); !os.IsNotExist(err) {
		t.Error("failed runs must not leave an output file")
	}
}
