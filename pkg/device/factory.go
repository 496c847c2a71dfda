package device

import (
	"fmt"
)

// RepositoryConfig contains configuration for creating a device repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories
	DB DBTX
}

// NewDeviceRepository creates a device repository based on the persistence type
func NewDeviceRepository(persistenceType string, config RepositoryConfig) (TrustedDeviceRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresDeviceRepository(config.DB), nil
	case "inmem", "memory":
		return NewInMemDeviceRepository(), nil
	case "none", "noop":
		return NewNoOpDeviceRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem, none)", persistenceType)
	}
}
