package pipeline

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/sanonone/kektorviz/pkg/core/knn"
	"github.com/sanonone/kektorviz/pkg/core/types"
	"github.com/sanonone/kektorviz/pkg/density"
	"github.com/sanonone/kektorviz/pkg/table"
)

// clusteredTable builds a table with an id column and 2n embeddings in dim
// dimensions: ids a-* around the origin, ids b-* around (10, 10, ...).
func clusteredTable(t *testing.T, seed int64, n, dim int) *table.Table {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	ids := make([]string, 0, 2*n)
	vecs := make([][]float64, 0, 2*n)
	for c, prefix := range []string{"a", "b"} {
		for i := 0; i < n; i++ {
			v := make([]float64, dim)
			for j := range v {
				v[j] = float64(c)*10 + rng.NormFloat64()*0.5
			}
			ids = append(ids, fmt.Sprintf("%s-%d", prefix, i))
			vecs = append(vecs, v)
		}
	}
	tbl := table.New(len(ids))
	if err := tbl.AddText("id", ids); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AddVectors("embedding", vecs); err != nil {
		t.Fatal(err)
	}
	return tbl
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Projector.Dims = 2
	cfg.Projector.Neighbors = 5
	cfg.Density.K = 5
	return cfg
}

func TestRunColumnContract(t *testing.T) {
	tbl := clusteredTable(t, 1, 15, 8)
	cfg := testConfig()
	cfg.Projector.Dims = 3

	out, report, err := Run(tbl, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := strings.Join(out.Names(), ","); got != "id,coord_1,coord_2,coord_3,density" {
		t.Errorf("unexpected columns: %s", got)
	}
	if out.Len() != tbl.Len() {
		t.Fatalf("got %d rows, want %d", out.Len(), tbl.Len())
	}
	if len(out.ColumnsOf(table.Vector)) != 0 {
		t.Error("vector column should be dropped from the output")
	}

	dens, _ := out.Column("density")
	for i, s := range dens.Floats {
		if s < 0 || s > 1 || math.IsNaN(s) {
			t.Errorf("density[%d] = %g out of [0, 1]", i, s)
		}
	}

	if report.RunID == "" || report.Rows != 30 || report.InputDims != 8 || report.Dims != 3 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(report.Stages) != 2 || report.Stages[0].Stage != "projector" || report.Stages[1].Stage != "density" {
		t.Errorf("unexpected stages: %+v", report.Stages)
	}
	if report.Density.Points != 30 {
		t.Errorf("summary covers %d points, want 30", report.Density.Points)
	}
}

func TestRunPreservesRowOrder(t *testing.T) {
	tbl := clusteredTable(t, 2, 20, 6)
	out, _, err := Run(tbl, testConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	in, _ := tbl.Column("id")
	got, _ := out.Column("id")
	for i := range in.Text {
		if in.Text[i] != got.Text[i] {
			t.Fatalf("row %d: id %q became %q", i, in.Text[i], got.Text[i])
		}
	}

	// Coordinates still belong to their rows: the two clusters stay apart.
	x, _ := out.Column("coord_1")
	y, _ := out.Column("coord_2")
	var ax, ay, bx, by float64
	for i, id := range got.Text {
		if strings.HasPrefix(id, "a") {
			ax, ay = ax+x.Floats[i], ay+y.Floats[i]
		} else {
			bx, by = bx+x.Floats[i], by+y.Floats[i]
		}
	}
	ax, ay, bx, by = ax/20, ay/20, bx/20, by/20
	for i, id := range got.Text {
		da := math.Hypot(x.Floats[i]-ax, y.Floats[i]-ay)
		db := math.Hypot(x.Floats[i]-bx, y.Floats[i]-by)
		if strings.HasPrefix(id, "a") != (da < db) {
			t.Errorf("row %s landed in the wrong cluster", id)
		}
	}
}

func TestRunDoesNotMutateInput(t *testing.T) {
	tbl := clusteredTable(t, 3, 10, 4)
	emb, _ := tbl.Column("embedding")
	first := emb.Vectors[0][0]

	if _, _, err := Run(tbl, testConfig()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := strings.Join(tbl.Names(), ","); got != "id,embedding" {
		t.Errorf("input columns changed to %s", got)
	}
	if emb.Vectors[0][0] != first {
		t.Error("input vectors were modified")
	}
}

func TestRunErrors(t *testing.T) {
	t.Run("NoVectorColumn", func(t *testing.T) {
		tbl := table.New(2)
		tbl.AddText("id", []string{"a", "b"})
		if _, _, err := Run(tbl, testConfig()); !errors.Is(err, types.ErrInput) {
			t.Errorf("got %v, want ErrInput", err)
		}
	})

	t.Run("TwoVectorColumns", func(t *testing.T) {
		tbl := clusteredTable(t, 4, 10, 4)
		other := make([][]float64, 20)
		for i := range other {
			other[i] = []float64{float64(i), 0}
		}
		if err := tbl.AddVectors("other", other); err != nil {
			t.Fatal(err)
		}
		if _, _, err := Run(tbl, testConfig()); !errors.Is(err, types.ErrInput) {
			t.Errorf("got %v, want ErrInput", err)
		}
	})

	t.Run("ColumnCollision", func(t *testing.T) {
		tbl := clusteredTable(t, 4, 10, 4)
		tbl.AddFloats("density", make([]float64, 20))
		if _, _, err := Run(tbl, testConfig()); !errors.Is(err, types.ErrInput) {
			t.Errorf("got %v, want ErrInput", err)
		}
	})

	t.Run("InsufficientData", func(t *testing.T) {
		tbl := clusteredTable(t, 4, 2, 4) // 4 points, 5 neighbors
		out, report, err := Run(tbl, testConfig())
		var ie *types.InsufficientDataError
		if !errors.As(err, &ie) {
			t.Fatalf("got %v, want InsufficientDataError", err)
		}
		if ie.Stage != "projector" {
			t.Errorf("failing stage: got %q, want projector", ie.Stage)
		}
		if out != nil || report != nil {
			t.Error("no output expected on error")
		}
	})

	t.Run("DimensionMismatchOnRead", func(t *testing.T) {
		csv := "id,embedding\n1,\"[1,2]\"\n2,\"[1,2]\"\n3,\"[1,2,3]\"\n"
		_, err := table.ReadCSV(strings.NewReader(csv), table.ReadOptions{VectorColumns: []string{"embedding"}})
		var de *types.DimensionMismatchError
		if !errors.As(err, &de) || de.Row != 2 {
			t.Errorf("got %v, want mismatch at row 2", err)
		}
	})
}

// circleTable places n points evenly on a unit circle and embeds them in
// dim dimensions through a fixed random orthonormal pair of axes.
func circleTable(t *testing.T, n, dim int) *table.Table {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	u := make([]float64, dim)
	v := make([]float64, dim)
	for j := range u {
		u[j], v[j] = rng.NormFloat64(), rng.NormFloat64()
	}
	unit := func(a []float64) {
		var s float64
		for _, x := range a {
			s += x * x
		}
		s = math.Sqrt(s)
		for j := range a {
			a[j] /= s
		}
	}
	unit(u)
	var dot float64
	for j := range u {
		dot += u[j] * v[j]
	}
	for j := range v {
		v[j] -= dot * u[j]
	}
	unit(v)

	vecs := make([][]float64, n)
	for i := range vecs {
		theta := 2 * math.Pi * float64(i) / float64(n)
		c, s := math.Cos(theta), math.Sin(theta)
		vecs[i] = make([]float64, dim)
		for j := range vecs[i] {
			vecs[i][j] = c*u[j] + s*v[j]
		}
	}
	tbl := table.New(n)
	if err := tbl.AddVectors("embedding", vecs); err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestRunCircle(t *testing.T) {
	tbl := circleTable(t, 25, 10)
	cfg := testConfig()
	cfg.Density.LowPercentile = 0
	cfg.Density.HighPercentile = 1

	out, report, err := Run(tbl, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Density.Min != 0 || report.Density.Max != 1 {
		t.Errorf("full window should span [0, 1], got [%g, %g]", report.Density.Min, report.Density.Max)
	}

	x, _ := out.Column("coord_1")
	y, _ := out.Column("coord_2")
	coords := make([][]float64, out.Len())
	for i := range coords {
		coords[i] = []float64{x.Floats[i], y.Floats[i]}
	}
	dists, err := knn.Distances(coords, cfg.Density.K, 0)
	if err != nil {
		t.Fatal(err)
	}
	raw := density.RawDensity(dists)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range raw {
		lo, hi = math.Min(lo, r), math.Max(hi, r)
	}
	// Uniformly spaced input keeps the raw density within a narrow band.
	if hi/lo > 3 {
		t.Errorf("raw density varies by a factor of %g", hi/lo)
	}
}

func TestTimeStage(t *testing.T) {
	report := &Report{}
	if err := timeStage(report, "projector", 4, func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	if len(report.Stages) != 1 || report.Stages[0].Stage != "projector" {
		t.Errorf("timing not recorded: %+v", report.Stages)
	}

	// Stages outside Run only feed the metrics.
	if err := timeStage(nil, "embed", 4, func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	boom := types.Inputf("boom")
	if err := timeStage(nil, "embed", 4, func() error { return boom }); err != boom {
		t.Errorf("got %v, want the stage error unchanged", err)
	}
}
