package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sanonone/kektorviz/pkg/core/types"
	"github.com/sanonone/kektorviz/pkg/embeddings"
	"github.com/sanonone/kektorviz/pkg/table"
)

// missingText is how spreadsheet exports spell an absent value once it has
// been stringified.
const missingText = "nan"

// Embed drops rows whose text is blank or "nan", embeds the remaining texts
// in batches of cfg.BatchSize and returns a copy of tbl with a vector column
// named vectorColumn appended. Any embedder error aborts the stage.
func Embed(ctx context.Context, tbl *table.Table, cfg EmbedConfig, vectorColumn string, e embeddings.Embedder) (*table.Table, error) {
	col, ok := tbl.Column(cfg.TextColumn)
	if !ok {
		return nil, types.Inputf("embed: missing required column %q", cfg.TextColumn)
	}
	if col.Kind != table.Text {
		return nil, types.Inputf("embed: column %q is a %s column, expected text", cfg.TextColumn, col.Kind)
	}
	if _, exists := tbl.Column(vectorColumn); exists {
		return nil, types.Inputf("embed: input already has a column named %q", vectorColumn)
	}
	batch := cfg.BatchSize
	if batch < 1 {
		batch = 1
	}

	texts := col.Text
	out := tbl.Filter(func(i int) bool {
		s := strings.TrimSpace(texts[i])
		return s != "" && s != missingText
	})
	slog.Info("[Embed] Cleaned input", "rows", tbl.Len(), "kept", out.Len(), "dropped", tbl.Len()-out.Len())
	if out.Len() == 0 {
		return nil, types.Inputf("embed: no rows with text left in column %q", cfg.TextColumn)
	}

	kept, _ := out.Column(cfg.TextColumn)
	vectors := make([][]float64, 0, out.Len())
	err := timeStage(nil, "embed", out.Len(), func() error {
		for start := 0; start < len(kept.Text); start += batch {
			end := min(start+batch, len(kept.Text))
			vecs, err := e.Embed(ctx, kept.Text[start:end])
			if err != nil {
				return fmt.Errorf("embed: rows %d-%d: %w", start, end-1, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embed: embedder returned %d vectors for %d texts", len(vecs), end-start)
			}
			vectors = append(vectors, vecs...)
			slog.Debug("[Embed] Batch done", "rows", end, "of", len(kept.Text))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := out.AddVectors(vectorColumn, vectors); err != nil {
		return nil, err
	}
	return out, nil
}
