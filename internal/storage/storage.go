package storage

import (
	"context"

	"github.com/xaenox/daily-brief/internal/models"
)

// ProfileSource is the external tabular data source the directory is rebuilt from.
type ProfileSource interface {
	Records(ctx context.Context) ([]models.Record, error)
	Close() error
}
