package clientdata

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultRetention is how long an expired entry is kept as a stale fallback.
const DefaultRetention = 7 * 24 * time.Hour

// CleanupJob prunes cache entries that expired longer ago than the
// retention window. Recently expired entries stay: they are the stale tier
// used when the remote service is down.
type CleanupJob struct {
	repo      *Repository
	retention time.Duration
	log       zerolog.Logger
}

// NewCleanupJob creates the cleanup job. A non-positive retention uses
// DefaultRetention.
func NewCleanupJob(repo *Repository, retention time.Duration, log zerolog.Logger) *CleanupJob {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &CleanupJob{
		repo:      repo,
		retention: retention,
		log:       log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// Run deletes entries that expired before now - retention.
func (j *CleanupJob) Run() error {
	cutoff := j.repo.now().Add(-j.retention)
	results, err := j.repo.DeleteAllExpiredBefore(cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to prune client data")
		return err
	}

	var total int64
	for _, table := range AllTables {
		if n := results[table]; n > 0 {
			j.log.Debug().Str("table", table).Int64("deleted", n).Msg("Pruned expired cache entries")
			total += n
		}
	}
	j.log.Info().
		Int64("total_deleted", total).
		Time("cutoff", cutoff).
		Msg("Client data cleanup completed")
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
