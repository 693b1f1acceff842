package api

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"mapprice/server/config"
	"mapprice/server/internal/clock"
	"mapprice/server/internal/geometry"
	"mapprice/server/internal/models"
	"mapprice/server/internal/queue"
	"mapprice/server/internal/search"
	"mapprice/server/internal/spatial"
)

const maxRadiusDegree = 0.1

// Searcher answers map queries.
type Searcher interface {
	BoundingSearch(ctx context.Context, shape spatial.Shape, q search.Query) ([]models.ResultEntity, error)
	AdministrativeSearch(ctx context.Context, rect spatial.Rectangle, zoom int) ([]models.RegionEntity, error)
	SearchByName(ctx context.Context, text string) ([]models.SearchEntity, error)
}

// RunEnqueuer accepts aggregation run requests.
type RunEnqueuer interface {
	Push(req queue.Request) error
}

type Handler struct {
	searcher     Searcher
	runs         RunEnqueuer
	clock        clock.Clock
	logger       *logrus.Logger
	radiusDegree float64
}

// ListingFilter holds the listing filters shared by the map endpoints.
type ListingFilter struct {
	IncludePrivate   *bool    `form:"include_private"`
	IncludePublic    *bool    `form:"include_public"`
	Categories       []string `form:"category" binding:"dive,oneof=apartment studio rowhouse"`
	PublicCategories []string `form:"public_category" binding:"dive,oneof=apartment studio rowhouse"`
	Statuses         []string `form:"status" binding:"dive,oneof=before_open receiving closed unknown"`
	MinSize          *int64   `form:"min_size" binding:"omitempty,min=0"`
	MaxSize          *int64   `form:"max_size" binding:"omitempty,min=0"`
}

type BoundsRequest struct {
	ListingFilter
	North  *float64 `form:"north" binding:"required,min=-90,max=90"`
	South  *float64 `form:"south" binding:"required,min=-90,max=90"`
	West   *float64 `form:"west" binding:"required,min=-180,max=180"`
	East   *float64 `form:"east" binding:"required,min=-180,max=180"`
	Zoom   int      `form:"zoom" binding:"required,min=6,max=22"`
	Format string   `form:"format" binding:"omitempty,oneof=json geojson"`
}

type RadiusRequest struct {
	ListingFilter
	Latitude  *float64 `form:"lat" binding:"required,min=-90,max=90"`
	Longitude *float64 `form:"lon" binding:"required,min=-180,max=180"`
	Degree    *float64 `form:"radius" binding:"omitempty,gt=0"`
	Format    string   `form:"format" binding:"omitempty,oneof=json geojson"`
}

type NameSearchRequest struct {
	Query string `form:"q" binding:"required,max=100"`
}

type RunRequest struct {
	Reason string `json:"reason"`
}

func NewHandler(searcher Searcher, runs RunEnqueuer, cfg *config.Config, c clock.Clock, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if c == nil {
		c = clock.Real{}
	}

	radius := cfg.Search.RadiusDegree
	if radius <= 0 {
		radius = spatial.DefaultRadiusDegree
	}

	return &Handler{
		searcher:     searcher,
		runs:         runs,
		clock:        c,
		logger:       logger,
		radiusDegree: radius,
	}
}

// query converts the bound filter into a search query. Both listing types
// are included unless a flag says otherwise.
func (f ListingFilter) query() search.Query {
	q := search.Query{
		Category: spatial.Category{
			IncludePrivate: f.IncludePrivate == nil || *f.IncludePrivate,
			IncludePublic:  f.IncludePublic == nil || *f.IncludePublic,
		},
		Size: spatial.SizeRange{Min: f.MinSize, Max: f.MaxSize},
	}
	for _, c := range f.Categories {
		q.Category.Private = append(q.Category.Private, models.Category(c))
	}
	for _, c := range f.PublicCategories {
		q.Category.Public = append(q.Category.Public, models.Category(c))
	}
	for _, s := range f.Statuses {
		q.AcceptedStatuses = append(q.AcceptedStatuses, models.PublicStatus(s))
	}
	return q
}

func (f ListingFilter) validate() error {
	if f.MinSize != nil && f.MaxSize != nil && *f.MinSize > *f.MaxSize {
		return errors.New("min_size must not exceed max_size")
	}
	return nil
}

func (r BoundsRequest) rectangle() spatial.Rectangle {
	return spatial.RectanglePredicate(orb.Point{*r.West, *r.North}, orb.Point{*r.East, *r.South})
}

// GetBounds returns listings at street zoom and region aggregates otherwise.
func (h *Handler) GetBounds(c *gin.Context) {
	var req BoundsRequest
	if !h.bind(c, &req) {
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rect := req.rectangle()
	if err := rect.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	granularity, err := spatial.ResolveGranularity(req.Zoom)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if granularity != spatial.GranularityListing {
		h.respondRegions(c, rect, req.Zoom, granularity, req.Format)
		return
	}

	results, err := h.searcher.BoundingSearch(c.Request.Context(), rect, req.query())
	if err != nil {
		h.logger.WithError(err).Error("Failed to run bounding search")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run bounding search"})
		return
	}
	h.respondListings(c, granularity, results, req.Format)
}

// GetRadius returns the listings around a point.
func (h *Handler) GetRadius(c *gin.Context) {
	var req RadiusRequest
	if !h.bind(c, &req) {
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	degree := h.radiusDegree
	if req.Degree != nil {
		degree = *req.Degree
	}
	if degree > maxRadiusDegree {
		c.JSON(http.StatusBadRequest, gin.H{"error": "radius too large"})
		return
	}

	shape := spatial.RadiusPredicate(orb.Point{*req.Longitude, *req.Latitude}, degree)
	results, err := h.searcher.BoundingSearch(c.Request.Context(), shape, req.query())
	if err != nil {
		h.logger.WithError(err).Error("Failed to run radius search")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run radius search"})
		return
	}
	h.respondListings(c, spatial.GranularityListing, results, req.Format)
}

// GetRegions returns region aggregates only; listing zooms are rejected.
func (h *Handler) GetRegions(c *gin.Context) {
	var req BoundsRequest
	if !h.bind(c, &req) {
		return
	}

	rect := req.rectangle()
	if err := rect.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	granularity, err := spatial.ResolveGranularity(req.Zoom)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondRegions(c, rect, req.Zoom, granularity, req.Format)
}

func (h *Handler) respondRegions(c *gin.Context, rect spatial.Rectangle, zoom int, granularity spatial.Granularity, format string) {
	regions, err := h.searcher.AdministrativeSearch(c.Request.Context(), rect, zoom)
	if errors.Is(err, search.ErrListingGranularity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to run administrative search")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run administrative search"})
		return
	}

	if format == "geojson" {
		c.JSON(http.StatusOK, geometry.RegionFeatures(regions))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"granularity": granularity.String(),
		"regions":     regions,
	})
}

func (h *Handler) respondListings(c *gin.Context, granularity spatial.Granularity, results []models.ResultEntity, format string) {
	if format == "geojson" {
		fc := geometry.ResultFeatures(results)
		if bound, ok := geometry.Extent(results); ok {
			fc.BBox = geojson.NewBBox(bound)
		}
		c.JSON(http.StatusOK, fc)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"granularity": granularity.String(),
		"listings":    results,
	})
}

// SearchByName finds listings by name.
func (h *Handler) SearchByName(c *gin.Context) {
	var req NameSearchRequest
	if !h.bind(c, &req) {
		return
	}

	results, err := h.searcher.SearchByName(c.Request.Context(), req.Query)
	if err != nil {
		h.logger.WithError(err).Error("Failed to search by name")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search by name"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// TriggerAggregation queues an aggregation run.
func (h *Handler) TriggerAggregation(c *gin.Context) {
	var req RunRequest
	// the body is optional
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual"
	}

	err := h.runs.Push(queue.Request{Reason: req.Reason, RequestedAt: h.clock.Now()})
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	case errors.Is(err, queue.ErrQueueFull):
		c.JSON(http.StatusConflict, gin.H{"error": "An aggregation run is already pending"})
	case errors.Is(err, queue.ErrQueueClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Aggregation is shutting down"})
	default:
		h.logger.WithError(err).Error("Failed to queue aggregation run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue aggregation run"})
	}
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		h.logger.WithError(err).Debug("Invalid request parameters")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters", "details": err.Error()})
		return false
	}
	return true
}
