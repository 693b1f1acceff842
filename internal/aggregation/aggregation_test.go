package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapprice/server/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func supply(v float64) *float64 {
	return &v
}

func record(kind models.TransactionKind, private float64, when time.Time, price int64) models.TransactionRecord {
	return models.TransactionRecord{
		ListingID:    1,
		Kind:         kind,
		PrivateArea:  private,
		ContractDate: when,
		Price:        price,
		Available:    true,
	}
}

func TestSelectDefault_CountWins(t *testing.T) {
	var records []models.TransactionRecord
	for i := 0; i < 7; i++ {
		records = append(records, record(models.KindTrade, 59.9, date(2024, 1, 1+i), 50000))
	}
	// fewer records but later dates
	records = append(records,
		record(models.KindTrade, 84.3, date(2024, 6, 1), 90000),
		record(models.KindTrade, 84.3, date(2024, 6, 2), 91000),
	)

	g := SelectDefault(records)
	require.NotNil(t, g)
	assert.Equal(t, 59.9, g.Key.PrivateArea)
	assert.Len(t, g.Records, 7)
}

func TestSelectDefault_TieBrokenByLatestDate(t *testing.T) {
	records := []models.TransactionRecord{
		record(models.KindTrade, 59.9, date(2024, 3, 1), 50000),
		record(models.KindTrade, 59.9, date(2024, 3, 2), 50000),
		record(models.KindTrade, 84.3, date(2024, 2, 1), 90000),
		record(models.KindTrade, 84.3, date(2024, 4, 2), 91000),
	}

	g := SelectDefault(records)
	require.NotNil(t, g)
	assert.Equal(t, 84.3, g.Key.PrivateArea)
	assert.Equal(t, date(2024, 4, 2), g.MaxDate)
}

func TestSelectDefault_FullTieIsDeterministic(t *testing.T) {
	a := record(models.KindTrade, 84.3, date(2024, 3, 1), 90000)
	b := record(models.KindTrade, 59.9, date(2024, 3, 1), 50000)

	first := SelectDefault([]models.TransactionRecord{a, b})
	second := SelectDefault([]models.TransactionRecord{b, a})
	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, 59.9, first.Key.PrivateArea)
}

func TestSelectDefault_SupplyAreaSplitsGroups(t *testing.T) {
	withSupply := record(models.KindTrade, 59.9, date(2024, 3, 1), 50000)
	withSupply.SupplyArea = supply(79.3)
	records := []models.TransactionRecord{
		withSupply,
		record(models.KindTrade, 59.9, date(2024, 3, 2), 51000),
		record(models.KindTrade, 59.9, date(2024, 3, 3), 52000),
	}

	groups := GroupRecords(records)
	require.Len(t, groups, 2)
	assert.Equal(t, GroupKey{PrivateArea: 59.9}, groups[0].Key)
	assert.Equal(t, GroupKey{PrivateArea: 59.9, SupplyArea: 79.3}, groups[1].Key)
}

func TestSelectDefault_Empty(t *testing.T) {
	assert.Nil(t, SelectDefault(nil))
}

func TestPartitionByKind_SkipsUnavailable(t *testing.T) {
	hidden := record(models.KindTrade, 59.9, date(2024, 3, 1), 50000)
	hidden.Available = false
	records := []models.TransactionRecord{
		hidden,
		record(models.KindTrade, 59.9, date(2024, 3, 2), 51000),
		record(models.KindDeposit, 59.9, date(2024, 3, 3), 30000),
	}

	byKind := PartitionByKind(records)
	assert.Len(t, byKind[models.KindTrade], 1)
	assert.Len(t, byKind[models.KindDeposit], 1)
	assert.Empty(t, byKind[models.KindRent])
}

func TestWindowAverage_OnlyTrailingWindowCounts(t *testing.T) {
	maxDate := date(2024, 5, 30)
	records := []models.TransactionRecord{
		// 120 days before the latest contract, outside the window
		record(models.KindTrade, 59.9, maxDate.AddDate(0, 0, -120), 10000),
		record(models.KindTrade, 59.9, maxDate.AddDate(0, 0, -94), 10000),
		// exactly on the lower boundary, inside
		record(models.KindTrade, 59.9, maxDate.AddDate(0, 0, -93), 40000),
		record(models.KindTrade, 59.9, maxDate.AddDate(0, 0, -30), 50000),
		record(models.KindTrade, 59.9, maxDate, 60001),
	}

	res, ok := WindowAverage(records)
	require.True(t, ok)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, maxDate, res.LatestDate)
	// (40000 + 50000 + 60001) / 3 = 50000.33
	assert.Equal(t, int64(50000), res.AveragePrice)
}

func TestWindowAverage_RoundsHalfUp(t *testing.T) {
	records := []models.TransactionRecord{
		record(models.KindTrade, 59.9, date(2024, 3, 1), 1),
		record(models.KindTrade, 59.9, date(2024, 3, 2), 2),
	}
	res, ok := WindowAverage(records)
	require.True(t, ok)
	assert.Equal(t, int64(2), res.AveragePrice)
}

func TestWindowAverage_Empty(t *testing.T) {
	_, ok := WindowAverage(nil)
	assert.False(t, ok)
}

func TestAggregateListing(t *testing.T) {
	var records []models.TransactionRecord
	for i := 0; i < 7; i++ {
		records = append(records, record(models.KindTrade, 59.9, date(2024, 3, 1+i), int64(50000+i*1000)))
	}
	records = append(records,
		record(models.KindTrade, 84.3, date(2024, 4, 10), 90000),
		record(models.KindTrade, 84.3, date(2024, 4, 11), 92000),
	)

	res, err := AggregateListing(1, records)
	require.NoError(t, err)
	require.Len(t, res.Defaults, 1, "no deposit records, no deposit aggregate")

	trade := res.Defaults[0]
	assert.Equal(t, models.KindTrade, trade.Kind)
	assert.Equal(t, 59.9, trade.PrivateArea)
	assert.Equal(t, int64(53000), trade.AveragePrice)
	assert.Equal(t, date(2024, 3, 7), trade.LatestContractDate)
	assert.Equal(t, int64(24), trade.SizeUnit)
	assert.Equal(t, models.AreaSourcePrivate, trade.AreaSource)

	require.Len(t, res.Groups, 2)
	assert.True(t, res.Groups[0].IsDefault)
	assert.False(t, res.Groups[1].IsDefault)
	assert.Equal(t, int64(91000), res.Groups[1].AveragePrice)
}

func TestSizeUnitFor(t *testing.T) {
	size, source, err := SizeUnitFor(GroupKey{PrivateArea: 84.97, SupplyArea: 112.4})
	require.NoError(t, err)
	assert.Equal(t, int64(34), size)
	assert.Equal(t, models.AreaSourceSupply, source)

	size, source, err = SizeUnitFor(GroupKey{PrivateArea: 84.97})
	require.NoError(t, err)
	assert.Equal(t, int64(33), size)
	assert.Equal(t, models.AreaSourcePrivate, source)
}

func TestSummarizePublic(t *testing.T) {
	listing := models.PublicListing{
		ID: 7,
		SizeTypes: []models.PublicSizeType{
			{SizeType: "059.9900A", PrivateArea: 59.99, SupplyArea: 84.1, SupplyPrice: 60000, GeneralSupplyCount: 120, ApplicantCount: 3100, MinWinningScore: 54},
			{SizeType: "084.9800A", PrivateArea: 84.98, SupplyArea: 112.4, SupplyPrice: 82000, GeneralSupplyCount: 300, ApplicantCount: 4200, MinWinningScore: 0},
			{SizeType: "084.9800B", PrivateArea: 84.98, SupplyArea: 112.1, SupplyPrice: 81500, GeneralSupplyCount: 300, ApplicantCount: 2000, MinWinningScore: 61},
		},
	}

	agg, err := SummarizePublic(listing)
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Equal(t, uint(7), agg.PublicListingID)
	assert.Equal(t, "084.9800A", agg.SizeType)
	assert.Equal(t, int64(34), agg.SizeUnit)
	assert.Equal(t, int64(82000), agg.SupplyPrice)
	require.NotNil(t, agg.CompetitionRatio)
	// 9300 / 720 = 12.9
	assert.Equal(t, int64(13), *agg.CompetitionRatio)
	require.NotNil(t, agg.MinWinningScore)
	assert.Equal(t, int64(54), *agg.MinWinningScore)
}

func TestSummarizePublic_NoSupply(t *testing.T) {
	listing := models.PublicListing{
		ID: 8,
		SizeTypes: []models.PublicSizeType{
			{SizeType: "059.9900A", PrivateArea: 59.99, SupplyArea: 84.1, ApplicantCount: 10, MinWinningScore: 40},
		},
	}

	agg, err := SummarizePublic(listing)
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Nil(t, agg.CompetitionRatio)
	assert.Nil(t, agg.MinWinningScore)
}

func TestSummarizePublic_Empty(t *testing.T) {
	agg, err := SummarizePublic(models.PublicListing{ID: 9})
	require.NoError(t, err)
	assert.Nil(t, agg)
}
