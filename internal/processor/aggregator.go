package processor

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mapprice/server/config"
	"mapprice/server/internal/aggregation"
	"mapprice/server/internal/database"
	"mapprice/server/internal/models"
	"mapprice/server/internal/queue"
)

const defaultBatchSize = 500

// RunReport summarises one aggregation run.
type RunReport struct {
	RunID          uuid.UUID     `json:"run_id"`
	StartedAt      time.Time     `json:"started_at"`
	Batches        int           `json:"batches"`
	FailedBatches  int           `json:"failed_batches"`
	Listings       int           `json:"listings"`
	Inserted       int           `json:"inserted"`
	Updated        int           `json:"updated"`
	PublicRows     int           `json:"public_rows"`
	RegionsUpdated int           `json:"regions_updated"`
	Conflicts      []error       `json:"-"`
	Failures       []error       `json:"-"`
	Duration       time.Duration `json:"duration"`
}

// AveragePriceAggregator recomputes the default size class aggregates of
// every available listing. It is the only writer of the aggregate tables.
type AveragePriceAggregator struct {
	db        *gorm.DB
	logger    *logrus.Logger
	batchSize int
}

// NewAveragePriceAggregator creates an aggregator writing through db
func NewAveragePriceAggregator(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *AveragePriceAggregator {
	batchSize := cfg.Aggregation.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &AveragePriceAggregator{
		db:        db,
		logger:    logger,
		batchSize: batchSize,
	}
}

// HandleRun serves run requests taken off the run queue.
func (a *AveragePriceAggregator) HandleRun(ctx context.Context, req queue.Request) error {
	a.logger.WithFields(logrus.Fields{
		"reason":       req.Reason,
		"requested_at": req.RequestedAt,
	}).Info("Starting aggregation run")

	_, err := a.Run(ctx)
	return err
}

// Run pages through all available listings, then public listings, then
// refreshes the region averages. A failed batch is rolled back and reported;
// the run carries on with the next batch. Only read errors and context
// cancellation abort the run.
func (a *AveragePriceAggregator) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: uuid.New(), StartedAt: time.Now()}
	log := a.logger.WithField("run_id", report.RunID.String())
	db := a.db.WithContext(ctx)

	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return a.finish(log, report), err
		}

		ids, err := database.ListListingIDs(db, afterID, a.batchSize)
		if err != nil {
			return a.finish(log, report), err
		}
		if len(ids) == 0 {
			break
		}
		afterID = ids[len(ids)-1]
		report.Batches++
		report.Listings += len(ids)

		if err := a.processBatch(db, log, report, ids); err != nil {
			report.FailedBatches++
			report.Failures = append(report.Failures, fmt.Errorf("%w: listings %d-%d: %v", ErrWriteFailure, ids[0], afterID, err))
			log.WithError(err).WithFields(logrus.Fields{
				"batch":      report.Batches,
				"first_id":   ids[0],
				"last_id":    afterID,
				"batch_size": len(ids),
			}).Error("Aggregation batch failed, rolled back")
		}
	}

	if err := a.runPublic(ctx, db, log, report); err != nil {
		return a.finish(log, report), err
	}

	updated, err := a.rollupRegions(db)
	if err != nil {
		report.Failures = append(report.Failures, fmt.Errorf("%w: regions: %v", ErrWriteFailure, err))
		log.WithError(err).Error("Region rollup failed, rolled back")
	}
	report.RegionsUpdated = updated

	return a.finish(log, report), nil
}

func (a *AveragePriceAggregator) finish(log *logrus.Entry, report *RunReport) *RunReport {
	report.Duration = time.Since(report.StartedAt)
	log.WithFields(logrus.Fields{
		"batches":         report.Batches,
		"failed_batches":  report.FailedBatches,
		"listings":        report.Listings,
		"inserted":        report.Inserted,
		"updated":         report.Updated,
		"conflicts":       len(report.Conflicts),
		"public_rows":     report.PublicRows,
		"regions_updated": report.RegionsUpdated,
		"duration_ms":     report.Duration.Milliseconds(),
	}).Info("Aggregation run finished")
	return report
}

type aggregateUpdate struct {
	id  uint
	row models.SizeClassAggregate
}

// processBatch writes one batch of listings in a single transaction.
func (a *AveragePriceAggregator) processBatch(db *gorm.DB, log *logrus.Entry, report *RunReport, ids []uint) error {
	records, err := database.LoadTransactions(db, ids)
	if err != nil {
		return err
	}

	var candidates []models.SizeClassAggregate
	var groups []models.SizeClassGroup
	// skipped listings keep their previous groups
	aggregated := make([]uint, 0, len(ids))
	for _, id := range ids {
		result, err := aggregation.AggregateListing(id, records[id])
		if err != nil {
			log.WithError(err).WithField("listing_id", id).Warn("Skipping listing")
			continue
		}
		aggregated = append(aggregated, id)
		candidates = append(candidates, result.Defaults...)
		groups = append(groups, result.Groups...)
	}

	var inserted, updated int
	var conflicts []error
	err = db.Transaction(func(tx *gorm.DB) error {
		existing, err := database.ExistingAggregates(tx, ids)
		if err != nil {
			return err
		}

		var inserts []models.SizeClassAggregate
		var updates []aggregateUpdate
		for _, c := range candidates {
			if id, ok := existing[database.AggregateKey{ListingID: c.ListingID, Kind: c.Kind}]; ok {
				updates = append(updates, aggregateUpdate{id: id, row: c})
				continue
			}
			inserts = append(inserts, c)
		}

		inserted, err = insertRows(tx, inserts, func(row models.SizeClassAggregate, cause error) {
			conflicts = append(conflicts, &ConflictError{ListingID: row.ListingID, Kind: row.Kind, Err: cause})
		})
		if err != nil {
			return err
		}

		for _, u := range updates {
			if err := database.UpdateAggregate(tx, u.id, u.row); err != nil {
				return fmt.Errorf("failed to update aggregate %d: %w", u.id, err)
			}
			updated++
		}

		return database.ReplaceGroups(tx, aggregated, groups)
	})
	if err != nil {
		return err
	}

	report.Inserted += inserted
	report.Updated += updated
	for _, c := range conflicts {
		log.WithError(c).Warn("Aggregate conflict, listing skipped")
	}
	report.Conflicts = append(report.Conflicts, conflicts...)
	return nil
}

// runPublic refreshes the representative size type of every public listing.
func (a *AveragePriceAggregator) runPublic(ctx context.Context, db *gorm.DB, log *logrus.Entry, report *RunReport) error {
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		listings, err := database.ListPublicListings(db, afterID, a.batchSize)
		if err != nil {
			return err
		}
		if len(listings) == 0 {
			return nil
		}
		afterID = listings[len(listings)-1].ID
		report.Batches++

		if err := a.processPublicBatch(db, log, report, listings); err != nil {
			report.FailedBatches++
			report.Failures = append(report.Failures, fmt.Errorf("%w: public listings %d-%d: %v", ErrWriteFailure, listings[0].ID, afterID, err))
			log.WithError(err).WithFields(logrus.Fields{
				"batch":    report.Batches,
				"first_id": listings[0].ID,
				"last_id":  afterID,
			}).Error("Public aggregation batch failed, rolled back")
		}
	}
}

func (a *AveragePriceAggregator) processPublicBatch(db *gorm.DB, log *logrus.Entry, report *RunReport, listings []models.PublicListing) error {
	ids := make([]uint, 0, len(listings))
	var candidates []models.PublicAggregate
	for _, l := range listings {
		ids = append(ids, l.ID)
		agg, err := aggregation.SummarizePublic(l)
		if err != nil {
			log.WithError(err).WithField("public_listing_id", l.ID).Warn("Skipping public listing")
			continue
		}
		if agg != nil {
			candidates = append(candidates, *agg)
		}
	}

	var written int
	var conflicts []error
	err := db.Transaction(func(tx *gorm.DB) error {
		existing, err := database.ExistingPublicAggregates(tx, ids)
		if err != nil {
			return err
		}

		var inserts []models.PublicAggregate
		for _, c := range candidates {
			id, ok := existing[c.PublicListingID]
			if !ok {
				inserts = append(inserts, c)
				continue
			}
			if err := database.UpdatePublicAggregate(tx, id, c); err != nil {
				return fmt.Errorf("failed to update public aggregate %d: %w", id, err)
			}
			written++
		}

		n, err := insertRows(tx, inserts, func(row models.PublicAggregate, cause error) {
			conflicts = append(conflicts, &ConflictError{ListingID: row.PublicListingID, Err: cause})
		})
		written += n
		return err
	})
	if err != nil {
		return err
	}

	report.PublicRows += written
	for _, c := range conflicts {
		log.WithError(c).Warn("Public aggregate conflict, listing skipped")
	}
	report.Conflicts = append(report.Conflicts, conflicts...)
	return nil
}

// insertRows bulk inserts rows under a savepoint. When the bulk insert hits a
// unique violation it is undone and the rows are retried one by one, each
// under its own savepoint, so only the colliding rows are dropped. Any other
// error is returned and fails the enclosing transaction.
func insertRows[T any](tx *gorm.DB, rows []T, onConflict func(T, error)) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	if err := tx.SavePoint("bulk_insert").Error; err != nil {
		return 0, err
	}
	// gorm writes generated ids back into the slice; keep rows pristine for
	// the per-row retry
	err := database.InsertBatch(tx, slices.Clone(rows))
	if err == nil {
		return len(rows), nil
	}
	if !database.IsUniqueViolation(err) {
		return 0, err
	}
	if err := tx.RollbackTo("bulk_insert").Error; err != nil {
		return 0, err
	}

	inserted := 0
	for i := range rows {
		name := fmt.Sprintf("insert_row_%d", i)
		if err := tx.SavePoint(name).Error; err != nil {
			return inserted, err
		}
		row := rows[i]
		if err := tx.Create(&row).Error; err != nil {
			if !database.IsUniqueViolation(err) {
				return inserted, err
			}
			if err := tx.RollbackTo(name).Error; err != nil {
				return inserted, err
			}
			onConflict(rows[i], err)
			continue
		}
		inserted++
	}
	return inserted, nil
}
