package processor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mapprice/server/config"
	"mapprice/server/internal/database"
	"mapprice/server/internal/models"
)

func setupTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.NewTestDB()
	require.NoError(t, err)
	require.NoError(t, database.MigrateSchema(db))
	return db
}

func newTestAggregator(db *gorm.DB, batchSize int) *AveragePriceAggregator {
	cfg := &config.Config{}
	cfg.Aggregation.BatchSize = batchSize
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewAveragePriceAggregator(db, cfg, logger)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedListing(t testing.TB, db *gorm.DB, sido, sigungu string) models.PrivateListing {
	t.Helper()
	parcel := models.Parcel{Latitude: 37.5, Longitude: 127.0, Available: true, SidoCode: sido, SigunguCode: sigungu}
	require.NoError(t, db.Create(&parcel).Error)
	listing := models.PrivateListing{ParcelID: parcel.ID, Name: "단지", Category: models.CategoryApartment, Available: true}
	require.NoError(t, db.Create(&listing).Error)
	return listing
}

func seedTrades(t testing.TB, db *gorm.DB, listingID uint, area float64, dates []time.Time, prices []int64) {
	t.Helper()
	records := make([]models.TransactionRecord, len(dates))
	for i := range dates {
		records[i] = models.TransactionRecord{
			ListingID:    listingID,
			Kind:         models.KindTrade,
			PrivateArea:  area,
			ContractDate: dates[i],
			Price:        prices[i],
			Available:    true,
		}
	}
	require.NoError(t, db.Create(&records).Error)
}

// seedScenarioListing creates a listing with seven March trades of 59.9m²
// and two April trades of 84.3m², and no lease records.
func seedScenarioListing(t testing.TB, db *gorm.DB) models.PrivateListing {
	t.Helper()
	listing := seedListing(t, db, "11", "11680")

	var dates []time.Time
	var prices []int64
	for i := 0; i < 7; i++ {
		dates = append(dates, day(2024, 3, 1+i))
		prices = append(prices, int64(50000+i*1000))
	}
	seedTrades(t, db, listing.ID, 59.9, dates, prices)
	seedTrades(t, db, listing.ID, 84.3, []time.Time{day(2024, 4, 10), day(2024, 4, 11)}, []int64{90000, 92000})
	return listing
}

func TestRun_DefaultSizeClass(t *testing.T) {
	db := setupTestDB(t)
	listing := seedScenarioListing(t, db)

	report, err := newTestAggregator(db, 10).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Listings)
	assert.Equal(t, 1, report.Inserted)
	assert.Zero(t, report.FailedBatches)
	assert.Empty(t, report.Conflicts)

	var rows []models.SizeClassAggregate
	require.NoError(t, db.Where("listing_id = ?", listing.ID).Find(&rows).Error)
	require.Len(t, rows, 1, "no lease records, no deposit aggregate")
	assert.Equal(t, models.KindTrade, rows[0].Kind)
	assert.Equal(t, 59.9, rows[0].PrivateArea)
	assert.Equal(t, int64(53000), rows[0].AveragePrice)
	assert.Equal(t, int64(24), rows[0].SizeUnit)
	assert.True(t, day(2024, 3, 7).Equal(rows[0].LatestContractDate))

	var groups int64
	require.NoError(t, db.Model(&models.SizeClassGroup{}).Where("listing_id = ?", listing.ID).Count(&groups).Error)
	assert.Equal(t, int64(2), groups)
}

func TestRun_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	seedScenarioListing(t, db)
	deposit := seedListing(t, db, "41", "41135")
	require.NoError(t, db.Create(&models.TransactionRecord{
		ListingID: deposit.ID, Kind: models.KindDeposit, PrivateArea: 84.9,
		ContractDate: day(2024, 2, 1), Price: 40000, Available: true,
	}).Error)

	agg := newTestAggregator(db, 1)
	_, err := agg.Run(context.Background())
	require.NoError(t, err)

	var first []models.SizeClassAggregate
	require.NoError(t, db.Order("id").Find(&first).Error)
	var firstGroups []models.SizeClassGroup
	require.NoError(t, db.Order("listing_id, kind, private_area").Find(&firstGroups).Error)

	report, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Inserted)
	assert.Equal(t, 2, report.Updated)

	var second []models.SizeClassAggregate
	require.NoError(t, db.Order("id").Find(&second).Error)
	assert.Equal(t, first, second)

	var secondGroups []models.SizeClassGroup
	require.NoError(t, db.Order("listing_id, kind, private_area").Find(&secondGroups).Error)
	require.Len(t, secondGroups, len(firstGroups))
	for i := range firstGroups {
		// group rows are rebuilt, so only their content is compared
		secondGroups[i].ID = firstGroups[i].ID
	}
	assert.Equal(t, firstGroups, secondGroups)
}

func TestRun_PicksUpChangedInput(t *testing.T) {
	db := setupTestDB(t)
	listing := seedListing(t, db, "11", "11680")
	seedTrades(t, db, listing.ID, 59.9, []time.Time{day(2024, 1, 1)}, []int64{50000})

	agg := newTestAggregator(db, 10)
	_, err := agg.Run(context.Background())
	require.NoError(t, err)

	seedTrades(t, db, listing.ID, 84.9, []time.Time{day(2024, 5, 1), day(2024, 5, 2)}, []int64{80000, 80001})
	report, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	var row models.SizeClassAggregate
	require.NoError(t, db.Where("listing_id = ? AND kind = ?", listing.ID, models.KindTrade).First(&row).Error)
	assert.Equal(t, 84.9, row.PrivateArea)
	assert.Equal(t, int64(80001), row.AveragePrice)
}

func TestRun_Batches(t *testing.T) {
	db := setupTestDB(t)
	for i := 0; i < 5; i++ {
		l := seedListing(t, db, "11", "11680")
		seedTrades(t, db, l.ID, 59.9, []time.Time{day(2024, 1, 1)}, []int64{int64(10000 * (i + 1))})
	}

	report, err := newTestAggregator(db, 2).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Batches)
	assert.Equal(t, 5, report.Listings)
	assert.Equal(t, 5, report.Inserted)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", report.RunID.String())
}

func TestRun_WriteFailureRollsBackBatchOnly(t *testing.T) {
	db := setupTestDB(t)
	good := seedListing(t, db, "11", "11680")
	bad := seedListing(t, db, "11", "11680")
	seedTrades(t, db, good.ID, 59.9, []time.Time{day(2024, 1, 1)}, []int64{50000})
	seedTrades(t, db, bad.ID, 59.9, []time.Time{day(2024, 1, 1)}, []int64{60000})

	// sqlite triggers cannot take bound parameters
	require.NoError(t, db.Exec(fmt.Sprintf(
		`CREATE TRIGGER reject_aggregate BEFORE INSERT ON size_class_aggregates
		 WHEN NEW.listing_id = %d BEGIN SELECT RAISE(ABORT, 'rejected'); END`, bad.ID)).Error)

	report, err := newTestAggregator(db, 1).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Batches)
	assert.Equal(t, 1, report.FailedBatches)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0], ErrWriteFailure)
	assert.Empty(t, report.Conflicts)
	assert.Equal(t, 1, report.Inserted)

	var count int64
	require.NoError(t, db.Model(&models.SizeClassAggregate{}).Where("listing_id = ?", good.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// nothing of the failed batch was committed, groups included
	require.NoError(t, db.Model(&models.SizeClassGroup{}).Where("listing_id = ?", bad.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRun_SkippedListingKeepsGroups(t *testing.T) {
	db := setupTestDB(t)
	listing := seedListing(t, db, "11", "11680")
	seedTrades(t, db, listing.ID, 59.9, []time.Time{day(2024, 1, 1), day(2024, 1, 2)}, []int64{50000, 52000})

	agg := newTestAggregator(db, 10)
	_, err := agg.Run(context.Background())
	require.NoError(t, err)

	// an area the converter rejects makes the listing fail to aggregate
	require.NoError(t, db.Model(&models.TransactionRecord{}).
		Where("listing_id = ?", listing.ID).
		Update("private_area", math.Inf(1)).Error)

	report, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.FailedBatches)
	assert.Zero(t, report.Inserted)
	assert.Zero(t, report.Updated)

	var stored models.SizeClassAggregate
	require.NoError(t, db.Where("listing_id = ?", listing.ID).First(&stored).Error)
	assert.Equal(t, int64(51000), stored.AveragePrice)

	var groups []models.SizeClassGroup
	require.NoError(t, db.Where("listing_id = ?", listing.ID).Find(&groups).Error)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].IsDefault)
	assert.Equal(t, int64(51000), groups[0].AveragePrice)
}

func TestInsertRows_ConflictIsPerListing(t *testing.T) {
	db := setupTestDB(t)
	existing := models.SizeClassAggregate{ListingID: 1, Kind: models.KindTrade, SizeUnit: 24, PrivateArea: 59.9,
		AveragePrice: 1, LatestContractDate: day(2024, 1, 1), AreaSource: models.AreaSourcePrivate}
	require.NoError(t, db.Create(&existing).Error)

	rows := []models.SizeClassAggregate{
		{ListingID: 1, Kind: models.KindTrade, SizeUnit: 24, PrivateArea: 59.9,
			AveragePrice: 2, LatestContractDate: day(2024, 1, 1), AreaSource: models.AreaSourcePrivate},
		{ListingID: 2, Kind: models.KindTrade, SizeUnit: 33, PrivateArea: 84.9,
			AveragePrice: 3, LatestContractDate: day(2024, 1, 1), AreaSource: models.AreaSourcePrivate},
	}

	var conflicts []error
	var inserted int
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		inserted, err = insertRows(tx, rows, func(row models.SizeClassAggregate, cause error) {
			conflicts = append(conflicts, &ConflictError{ListingID: row.ListingID, Kind: row.Kind, Err: cause})
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	require.Len(t, conflicts, 1)
	assert.ErrorIs(t, conflicts[0], ErrConflict)

	var conflict *ConflictError
	require.True(t, errors.As(conflicts[0], &conflict))
	assert.Equal(t, uint(1), conflict.ListingID)
	assert.Equal(t, models.KindTrade, conflict.Kind)

	var first, second models.SizeClassAggregate
	require.NoError(t, db.Where("listing_id = ?", 1).First(&first).Error)
	assert.Equal(t, int64(1), first.AveragePrice, "existing row untouched")
	require.NoError(t, db.Where("listing_id = ?", 2).First(&second).Error)
	assert.Equal(t, int64(3), second.AveragePrice)
}

func TestRun_PublicListings(t *testing.T) {
	db := setupTestDB(t)
	parcel := models.Parcel{Latitude: 37.5, Longitude: 127.0, Available: true}
	require.NoError(t, db.Create(&parcel).Error)
	listing := models.PublicListing{
		ParcelID: parcel.ID, Name: "공공분양", SaleCategory: models.CategoryApartment, Available: true,
		SizeTypes: []models.PublicSizeType{
			{SizeType: "059A", PrivateArea: 59.99, SupplyArea: 84.1, SupplyPrice: 60000, GeneralSupplyCount: 100, ApplicantCount: 1000, MinWinningScore: 50},
			{SizeType: "084A", PrivateArea: 84.98, SupplyArea: 112.4, SupplyPrice: 82000, GeneralSupplyCount: 200, ApplicantCount: 500, MinWinningScore: 45},
		},
	}
	require.NoError(t, db.Create(&listing).Error)

	agg := newTestAggregator(db, 10)
	report, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.PublicRows)

	var row models.PublicAggregate
	require.NoError(t, db.Where("public_listing_id = ?", listing.ID).First(&row).Error)
	assert.Equal(t, "084A", row.SizeType)
	assert.Equal(t, int64(34), row.SizeUnit)
	require.NotNil(t, row.CompetitionRatio)
	// 1500 / 300
	assert.Equal(t, int64(5), *row.CompetitionRatio)
	require.NotNil(t, row.MinWinningScore)
	assert.Equal(t, int64(45), *row.MinWinningScore)

	_, err = agg.Run(context.Background())
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&models.PublicAggregate{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRun_RegionRollup(t *testing.T) {
	db := setupTestDB(t)
	a := seedListing(t, db, "11", "11680")
	b := seedListing(t, db, "11", "11650")
	seedTrades(t, db, a.ID, 59.9, []time.Time{day(2024, 1, 1)}, []int64{100000})
	seedTrades(t, db, b.ID, 59.9, []time.Time{day(2024, 1, 1)}, []int64{150001})

	stale := int64(1)
	regions := []models.AdministrativeRegion{
		{Code: "11", Name: "서울특별시", Level: models.RegionProvince, Latitude: 37.56, Longitude: 126.97},
		{Code: "11680", Name: "강남구", Level: models.RegionCityDistrict, Latitude: 37.51, Longitude: 127.04},
		{Code: "41", Name: "경기도", Level: models.RegionProvince, Latitude: 37.27, Longitude: 127.0, TradeAveragePrice: &stale, ListingCount: 9},
	}
	require.NoError(t, db.Create(&regions).Error)

	report, err := newTestAggregator(db, 10).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.RegionsUpdated)

	var seoul, gangnam, gyeonggi models.AdministrativeRegion
	require.NoError(t, db.Where("code = ?", "11").First(&seoul).Error)
	require.NoError(t, db.Where("code = ?", "11680").First(&gangnam).Error)
	require.NoError(t, db.Where("code = ?", "41").First(&gyeonggi).Error)

	require.NotNil(t, seoul.TradeAveragePrice)
	// (100000 + 150001) / 2 rounds half up
	assert.Equal(t, int64(125001), *seoul.TradeAveragePrice)
	assert.Nil(t, seoul.DepositAveragePrice)
	assert.Equal(t, int64(2), seoul.ListingCount)

	require.NotNil(t, gangnam.TradeAveragePrice)
	assert.Equal(t, int64(100000), *gangnam.TradeAveragePrice)
	assert.Equal(t, int64(1), gangnam.ListingCount)

	assert.Nil(t, gyeonggi.TradeAveragePrice)
	assert.Zero(t, gyeonggi.ListingCount)
}

func TestRun_Cancelled(t *testing.T) {
	db := setupTestDB(t)
	seedScenarioListing(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestAggregator(db, 10).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Zero(t, report.Batches)
}
