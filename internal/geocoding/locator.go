package geocoding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mapprice/server/internal/database"
	"mapprice/server/internal/models"
)

// ErrNoParcels is returned for a region without any available parcel.
var ErrNoParcels = errors.New("region has no parcels")

// Locator derives the display point of administrative regions from the
// parcels inside them.
type Locator struct {
	db        *gorm.DB
	logger    *logrus.Logger
	cache     map[string]orb.Point
	cacheLock sync.RWMutex
}

func NewLocator(db *gorm.DB, logger *logrus.Logger) *Locator {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Locator{
		db:     db,
		logger: logger,
		cache:  make(map[string]orb.Point),
	}
}

// Locate returns the centroid of the parcels of a region.
func (l *Locator) Locate(region models.AdministrativeRegion) (orb.Point, error) {
	l.cacheLock.RLock()
	if p, ok := l.cache[region.Code]; ok {
		l.cacheLock.RUnlock()
		return p, nil
	}
	l.cacheLock.RUnlock()

	points, err := database.ParcelPoints(l.db, region.Level, region.Code)
	if err != nil {
		return orb.Point{}, err
	}
	if len(points) == 0 {
		return orb.Point{}, fmt.Errorf("%w: %s", ErrNoParcels, region.Code)
	}

	centroid, _ := planar.CentroidArea(orb.MultiPoint(points))

	l.cacheLock.Lock()
	l.cache[region.Code] = centroid
	l.cacheLock.Unlock()

	return centroid, nil
}

// UpdateMissingCoordinates fills the coordinates of regions imported
// without one. Regions without parcels are skipped.
func (l *Locator) UpdateMissingCoordinates(ctx context.Context) (int, error) {
	regions, err := database.RegionsMissingCoordinates(l.db)
	if err != nil {
		return 0, err
	}
	if len(regions) == 0 {
		return 0, nil
	}

	l.logger.WithField("regions", len(regions)).Info("Locating regions without coordinates")

	updated := 0
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		point, err := l.Locate(region)
		if errors.Is(err, ErrNoParcels) {
			l.logger.WithField("code", region.Code).Debug("No parcels to locate region")
			continue
		}
		if err != nil {
			return updated, err
		}

		if err := database.UpdateRegionCoordinates(l.db, region.Code, point); err != nil {
			return updated, fmt.Errorf("failed to update region %s: %w", region.Code, err)
		}
		updated++

		l.logger.WithFields(logrus.Fields{
			"code":      region.Code,
			"latitude":  point.Lat(),
			"longitude": point.Lon(),
		}).Debug("Located region")
	}

	l.logger.WithField("updated", updated).Info("Finished locating regions")
	return updated, nil
}
