package archive

import (
	"context"
	"time"
)

// Provider is the ELD record-retention store. Journals are retained per
// driver per day; object keys follow records/{driverID}/{date}.ndjson.
type Provider interface {
	// UploadJournal stores one day's replicated-payload journal.
	UploadJournal(ctx context.Context, driverID string, day time.Time, data []byte) error

	// CheckBucket ensures the retention bucket exists (initialization check).
	CheckBucket(ctx context.Context) error
}
