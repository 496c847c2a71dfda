package audit

import "fmt"

// RepositoryConfig contains configuration for creating an audit repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories
	DB DBTX
}

// NewAuditRepository creates an audit repository based on the persistence type
func NewAuditRepository(persistenceType string, config RepositoryConfig) (AuditRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresAuditRepository(config.DB), nil
	case "inmem", "memory":
		return NewInMemAuditRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}
