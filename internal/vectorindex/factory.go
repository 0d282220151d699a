package vectorindex

import (
	"context"
	"fmt"

	"castingai/internal/config"
	"castingai/internal/vectorindex/flat"
	"castingai/internal/vectorindex/local"
	"castingai/internal/vectorindex/qdrant"
)

// New selects and constructs the configured backend, mirroring the
// teacher's switch-on-backend-name factory (internal/persistence/databases/factory.go).
func New(ctx context.Context, cfg config.VectorIndexConfig) (Index, error) {
	switch cfg.Backend {
	case "", "local":
		return local.New(cfg.DataDir, cfg.Dimensions)
	case "qdrant":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("vector index backend qdrant requires a DSN")
		}
		return qdrant.New(cfg.DSN, cfg.Collection, cfg.Dimensions, cfg.Metric)
	case "flat":
		return flat.New(), nil
	default:
		return nil, fmt.Errorf("unsupported vector index backend: %s", cfg.Backend)
	}
}
