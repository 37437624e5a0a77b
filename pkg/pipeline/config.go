package pipeline

import (
	"fmt"
	"os"

	"github.com/sanonone/kektorviz/pkg/density"
	"github.com/sanonone/kektorviz/pkg/embeddings"
	"github.com/sanonone/kektorviz/pkg/projector"
	"gopkg.in/yaml.v3"
)

// Config holds every parameter of one pipeline invocation. A Config is
// passed by value into each stage; nothing is shared between runs.
type Config struct {
	// VectorColumn names the input column holding the embeddings.
	VectorColumn string `yaml:"vector_column"`
	// CoordPrefix is prepended to 1..N to name the coordinate columns.
	CoordPrefix string `yaml:"coord_prefix"`
	// DensityColumn names the appended density column.
	DensityColumn string `yaml:"density_column"`

	Projector projector.Config `yaml:"projector"`
	Density   density.Config   `yaml:"density"`
	Embed     EmbedConfig      `yaml:"embed"`
}

// EmbedConfig configures the text-to-vector stage.
type EmbedConfig struct {
	// TextColumn names the column whose values are embedded.
	TextColumn string `yaml:"text_column"`
	// BatchSize is the number of texts sent per Embed call.
	BatchSize int               `yaml:"batch_size"`
	Embedder  embeddings.Config `yaml:"embedder"`
}

// DefaultConfig returns the defaults of the reduce and embed commands.
func DefaultConfig() Config {
	return Config{
		VectorColumn:  "embedding",
		CoordPrefix:   "coord_",
		DensityColumn: "density",
		Projector:     projector.DefaultConfig(),
		Density:       density.DefaultConfig(),
		Embed: EmbedConfig{
			TextColumn: "statement",
			BatchSize:  32,
			Embedder:   embeddings.DefaultConfig(),
		},
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig using
// strict parsing, so a misspelled key is an error instead of a silently
// ignored setting. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open pipeline config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in pipeline config: %w", err)
	}

	return cfg, nil
}

// CoordName returns the name of the i-th (1-based) coordinate column.
func (c Config) CoordName(i int) string {
	return fmt.Sprintf("%s%d", c.CoordPrefix, i)
}
