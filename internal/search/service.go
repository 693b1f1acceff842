package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mapprice/server/config"
	"mapprice/server/internal/clock"
	"mapprice/server/internal/database"
	"mapprice/server/internal/models"
	"mapprice/server/internal/spatial"
)

var ErrListingGranularity = errors.New("zoom resolves to individual listings")

const defaultResultLimit = 20

// Query holds the listing filters of a bounding search.
type Query struct {
	Category         spatial.Category
	Size             spatial.SizeRange
	AcceptedStatuses []models.PublicStatus
}

// Service answers map queries from the read database.
type Service struct {
	db          *gorm.DB
	clock       clock.Clock
	logger      *logrus.Logger
	resultLimit int
}

func NewService(db *gorm.DB, c clock.Clock, cfg *config.Config, logger *logrus.Logger) *Service {
	limit := cfg.Search.ResultLimit
	if limit <= 0 {
		limit = defaultResultLimit
	}
	if c == nil {
		c = clock.Real{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{db: db, clock: c, logger: logger, resultLimit: limit}
}

// BoundingSearch returns the parcels inside shape that carry a listing
// matching q, each with its precomputed prices. Without a size range every
// matching listing is returned and missing prices are nil. With a size range
// only listings owning a size class in the range are returned.
func (s *Service) BoundingSearch(ctx context.Context, shape spatial.Shape, q Query) ([]models.ResultEntity, error) {
	if rect, ok := shape.(spatial.Rectangle); ok {
		if err := rect.Validate(); err != nil {
			return nil, err
		}
	}
	db := s.db.WithContext(ctx)

	var parcels []models.Parcel
	err := spatial.Build(db.Model(&models.Parcel{}), shape, q.Category, q.Size).
		Where("parcels.available = ?", true).
		Order("parcels.id").
		Find(&parcels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load parcels: %w", err)
	}
	if len(parcels) == 0 {
		return []models.ResultEntity{}, nil
	}

	parcelIDs := make([]uint, len(parcels))
	for i, p := range parcels {
		parcelIDs[i] = p.ID
	}

	var private map[uint]*models.PrivateResult
	if q.Category.IncludePrivate {
		if private, err = s.privateResults(db, parcelIDs, q); err != nil {
			return nil, err
		}
	}
	var public map[uint]*models.PublicResult
	if q.Category.IncludePublic {
		if public, err = s.publicResults(db, parcelIDs, q); err != nil {
			return nil, err
		}
	}

	results := make([]models.ResultEntity, 0, len(parcels))
	for _, p := range parcels {
		entity := models.ResultEntity{
			ParcelID:  p.ID,
			Address:   p.Address(),
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Private:   private[p.ID],
			Public:    public[p.ID],
		}
		if entity.Private == nil && entity.Public == nil {
			continue
		}
		results = append(results, entity)
	}
	return results, nil
}

func (s *Service) privateResults(db *gorm.DB, parcelIDs []uint, q Query) (map[uint]*models.PrivateResult, error) {
	listings, err := database.PrivateListingsByParcel(db, parcelIDs, q.Category.Private)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, nil
	}
	ids := make([]uint, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}

	var trade, deposit map[uint]*models.PriceResult
	if q.Size.Active() {
		trade, err = groupPrices(db, ids, models.KindTrade, q.Size)
		if err != nil {
			return nil, err
		}
		deposit, err = groupPrices(db, ids, models.KindDeposit, q.Size)
	} else {
		trade, err = defaultPrices(db, ids, models.KindTrade)
		if err != nil {
			return nil, err
		}
		deposit, err = defaultPrices(db, ids, models.KindDeposit)
	}
	if err != nil {
		return nil, err
	}

	results := make(map[uint]*models.PrivateResult, len(listings))
	for parcelID, l := range listings {
		r := &models.PrivateResult{
			ListingID: l.ID,
			Name:      l.Name,
			Category:  l.Category,
			Trade:     trade[l.ID],
			Deposit:   deposit[l.ID],
		}
		if q.Size.Active() && r.Trade == nil && r.Deposit == nil {
			continue
		}
		results[parcelID] = r
	}
	return results, nil
}

func defaultPrices(db *gorm.DB, ids []uint, kind models.TransactionKind) (map[uint]*models.PriceResult, error) {
	rows, err := database.DefaultAggregates(db, ids, kind)
	if err != nil {
		return nil, err
	}
	prices := make(map[uint]*models.PriceResult, len(rows))
	for id, r := range rows {
		prices[id] = &models.PriceResult{SizeUnit: r.SizeUnit, AveragePrice: r.AveragePrice, ContractDate: r.LatestContractDate}
	}
	return prices, nil
}

func groupPrices(db *gorm.DB, ids []uint, kind models.TransactionKind, size spatial.SizeRange) (map[uint]*models.PriceResult, error) {
	rows, err := database.LatestGroupsInRange(db, ids, kind, *size.Min, *size.Max)
	if err != nil {
		return nil, err
	}
	prices := make(map[uint]*models.PriceResult, len(rows))
	for id, r := range rows {
		prices[id] = &models.PriceResult{SizeUnit: r.SizeUnit, AveragePrice: r.AveragePrice, ContractDate: r.LatestContractDate}
	}
	return prices, nil
}

func (s *Service) publicResults(db *gorm.DB, parcelIDs []uint, q Query) (map[uint]*models.PublicResult, error) {
	listings, err := database.PublicListingsByParcel(db, parcelIDs, q.Category.Public)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, nil
	}
	ids := make([]uint, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	aggregates, err := database.PublicAggregates(db, ids)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	results := make(map[uint]*models.PublicResult, len(listings))
	for parcelID, l := range listings {
		status := DeriveStatus(l.OfferOpenDate, l.ApplicationEndDate, now)
		if !statusAccepted(status, q.AcceptedStatuses) {
			continue
		}

		r := &models.PublicResult{
			ListingID:    l.ID,
			Name:         l.Name,
			SaleCategory: l.SaleCategory,
			Status:       status,
		}
		agg, ok := aggregates[l.ID]
		if q.Size.Active() && (!ok || !q.Size.Contains(agg.SizeUnit)) {
			continue
		}
		if ok {
			size, price := agg.SizeUnit, agg.SupplyPrice
			r.SizeType = agg.SizeType
			r.SizeUnit = &size
			r.SupplyPrice = &price
			if status == models.StatusClosed {
				r.CompetitionRatio = agg.CompetitionRatio
				r.MinWinningScore = agg.MinWinningScore
			}
		}
		results[parcelID] = r
	}
	return results, nil
}

// AdministrativeSearch returns the region aggregates inside rect at the
// level the zoom resolves to.
func (s *Service) AdministrativeSearch(ctx context.Context, rect spatial.Rectangle, zoom int) ([]models.RegionEntity, error) {
	granularity, err := spatial.ResolveGranularity(zoom)
	if err != nil {
		return nil, err
	}
	level, ok := granularity.RegionLevel()
	if !ok {
		return nil, fmt.Errorf("%w: zoom %d", ErrListingGranularity, zoom)
	}
	if err := rect.Validate(); err != nil {
		return nil, err
	}

	regions, err := database.RegionsInBound(s.db.WithContext(ctx), level, rect.Bound())
	if err != nil {
		return nil, err
	}

	entities := make([]models.RegionEntity, len(regions))
	for i, r := range regions {
		entities[i] = models.RegionEntity{
			Code:                r.Code,
			Name:                r.Name,
			Level:               r.Level,
			Latitude:            r.Latitude,
			Longitude:           r.Longitude,
			TradeAveragePrice:   r.TradeAveragePrice,
			DepositAveragePrice: r.DepositAveragePrice,
			ListingCount:        r.ListingCount,
		}
	}
	return entities, nil
}

// SearchByName finds private and public listings whose name contains a
// token of text. Seoul listings come first, then Gyeonggi, then the rest,
// each ordered by id and capped per listing type.
func (s *Service) SearchByName(ctx context.Context, text string) ([]models.SearchEntity, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return []models.SearchEntity{}, nil
	}
	db := s.db.WithContext(ctx)

	results := make([]models.SearchEntity, 0)
	for _, source := range []struct {
		table string
		kind  models.ListingType
	}{
		{table: models.PrivateListing{}.TableName(), kind: models.ListingPrivate},
		{table: models.PublicListing{}.TableName(), kind: models.ListingPublic},
	} {
		rows, err := database.SearchListingNames(db, source.table, tokens)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(rows, func(i, j int) bool {
			ri, rj := config.RegionRank(rows[i].SidoCode), config.RegionRank(rows[j].SidoCode)
			if ri != rj {
				return ri < rj
			}
			return rows[i].ListingID < rows[j].ListingID
		})
		if len(rows) > s.resultLimit {
			rows = rows[:s.resultLimit]
		}

		for _, r := range rows {
			parcel := models.Parcel{SidoName: r.SidoName, SigunguName: r.SigunguName, DongName: r.DongName}
			results = append(results, models.SearchEntity{
				Type:      source.kind,
				ListingID: r.ListingID,
				Name:      r.Name,
				Address:   parcel.Address(),
				SidoCode:  r.SidoCode,
				Latitude:  r.Latitude,
				Longitude: r.Longitude,
			})
		}
	}

	s.logger.WithFields(logrus.Fields{
		"tokens":  len(tokens),
		"results": len(results),
	}).Debug("Name search")
	return results, nil
}
