package backend

import (
	"context"

	"expenses/internal/database"
	"expenses/internal/storage"
)

// Store is an expense repository whose connection the database manager
// drives.
type Store interface {
	storage.ExpenseRepository
	database.Connector
}

// BackendResult contains the store and the name it was created under.
type BackendResult struct {
	Type  BackendType
	Store Store
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend builds an unconnected store; the caller hands it to a
	// database.Manager.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// MongoDB specific
	MongoURI      string
	MongoDatabase string

	// SQLite specific
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	MongoBackend  BackendType = "mongo"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MongoBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
