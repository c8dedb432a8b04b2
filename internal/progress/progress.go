// internal/progress/progress.go
package progress

import (
	"context"
	"time"
)

// Znane frazy statusu; Complete i Error są końcowe.
const (
	StatusStarting   = "Starting"
	StatusFetching   = "Fetching products"
	StatusProcessing = "Processing products"
	StatusDryRun     = "Mapping products (dry run)"
	StatusComplete   = "Complete"
	StatusError      = "Error occurred"
)

const DefaultTTL = 30 * time.Minute

type Snapshot struct {
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal - czy przebieg już się skończył (sukcesem albo błędem).
func (s Snapshot) Terminal() bool {
	return s.Status == StatusComplete || s.Status == StatusError
}

// Store trzyma ostatni snapshot per operationId (last write wins).
// Brak wpisu po zakończeniu przebiegu jest poprawną odpowiedzią - dane wygasają.
type Store interface {
	Set(ctx context.Context, operationID string, s Snapshot) error
	Get(ctx context.Context, operationID string) (Snapshot, bool, error)
}
