package harvest

import (
	"fmt"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/database"
)

// OpenStore opens the result store selected by cfg.Backend.
// The caller closes it.
func OpenStore(cfg *config.Config) (database.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite, "":
		db, err := database.Open(cfg.DatabaseDir(), database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, nil
	case config.BackendRedis:
		rs, err := database.NewRedisStoreFromURL(cfg.RedisURL, database.DefaultRedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return rs, nil
	case config.BackendMemory:
		return database.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}
