package recovery

import "fmt"

// RepositoryConfig contains configuration for creating a recovery request repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories
	DB DBTX
}

// NewRecoveryRequestRepository creates a repository based on the persistence type
func NewRecoveryRequestRepository(persistenceType string, config RepositoryConfig) (RecoveryRequestRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresRecoveryRequestRepository(config.DB), nil
	case "inmem", "memory":
		return NewInMemRecoveryRequestRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}
