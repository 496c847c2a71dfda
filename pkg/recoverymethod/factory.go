package recoverymethod

import "fmt"

// RepositoryConfig contains configuration for creating a recovery method repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories and must be able to begin transactions
	DB DBTX
}

// NewRecoveryMethodRepository creates a repository based on the persistence type
func NewRecoveryMethodRepository(persistenceType string, config RepositoryConfig) (RecoveryMethodRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		if _, ok := config.DB.(txBeginner); !ok {
			return nil, fmt.Errorf("postgres recovery method repository requires a db that can begin transactions")
		}
		return NewPostgresRecoveryMethodRepository(config.DB), nil
	case "inmem", "memory":
		return NewInMemRecoveryMethodRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}
