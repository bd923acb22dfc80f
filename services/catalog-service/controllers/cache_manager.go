package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/repository"
)

const (
	ListingCachePrefix     = "listing:detail:"
	ListingVersionPrefix   = "listing:version:"
	ListingListCachePrefix = "listings:v:"
	CacheVersionKey        = "listings:version"
	DefaultCacheTTL        = 10 * time.Minute
	cacheWriteTimeout      = 5 * time.Second
)

// ListingPage is the cached body of GET /vms.
type ListingPage struct {
	VMs   []*models.Listing `json:"vms"`
	Total int64             `json:"total"`
	Skip  int               `json:"skip"`
	Limit int               `json:"limit"`
}

// CacheManager handles all Redis caching operations. Entries are keyed under
// version numbers that every write bumps: pages under the list version and
// detail entries under their listing's version. Readers take the version
// before querying the store, so a result that raced a write lands under a
// version nobody reads any more.
type CacheManager struct {
	redis   redis.Cmdable
	ttl     time.Duration
	metrics *awspkg.MetricsClient
	logger  *zap.Logger
}

func NewCacheManager(client redis.Cmdable, metrics *awspkg.MetricsClient, logger *zap.Logger) *CacheManager {
	return &CacheManager{redis: client, ttl: DefaultCacheTTL, metrics: metrics, logger: logger}
}

// ListVersion returns the version listing pages are cached under.
func (cm *CacheManager) ListVersion(ctx context.Context) (int64, error) {
	return cm.version(ctx, CacheVersionKey)
}

// ListingVersion returns the version a listing's detail entry is cached under.
func (cm *CacheManager) ListingVersion(ctx context.Context, id string) (int64, error) {
	return cm.version(ctx, ListingVersionPrefix+id)
}

// GetListingPage retrieves a listing page cached under version.
func (cm *CacheManager) GetListingPage(ctx context.Context, version int64, q repository.ListingQuery) (*ListingPage, bool) {
	cached, err := cm.redis.Get(ctx, cm.listKey(version, q)).Bytes()
	if err != nil {
		cm.record(ctx, false)
		return nil, false
	}

	var page ListingPage
	if err := json.Unmarshal(cached, &page); err != nil {
		cm.logger.Warn("Failed to unmarshal cached listing page", zap.Error(err))
		return nil, false
	}
	cm.record(ctx, true)
	return &page, true
}

// SetListingPageAsync caches a listing page in the background. version must
// be read before the page was queried.
func (cm *CacheManager) SetListingPageAsync(version int64, q repository.ListingQuery, page *ListingPage) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()
		cm.setListingPage(bgCtx, version, q, page)
	}()
}

func (cm *CacheManager) setListingPage(ctx context.Context, version int64, q repository.ListingQuery, page *ListingPage) {
	data, err := json.Marshal(page)
	if err != nil {
		cm.logger.Warn("Failed to marshal listing page for cache", zap.Error(err))
		return
	}
	if err := cm.redis.Set(ctx, cm.listKey(version, q), data, cm.ttl).Err(); err != nil {
		cm.logger.Debug("Failed to cache listing page", zap.Error(err))
	}
}

// GetListing retrieves a listing cached under version.
func (cm *CacheManager) GetListing(ctx context.Context, version int64, id string) (*models.Listing, bool) {
	cached, err := cm.redis.Get(ctx, detailKey(version, id)).Bytes()
	if err != nil {
		cm.record(ctx, false)
		return nil, false
	}
	var listing models.Listing
	if err := json.Unmarshal(cached, &listing); err != nil {
		return nil, false
	}
	cm.record(ctx, true)
	return &listing, true
}

// SetListingAsync caches a single listing in the background. version must be
// read before the listing was loaded.
func (cm *CacheManager) SetListingAsync(version int64, listing *models.Listing) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()
		cm.setListing(bgCtx, version, listing)
	}()
}

func (cm *CacheManager) setListing(ctx context.Context, version int64, listing *models.Listing) {
	data, err := json.Marshal(listing)
	if err != nil {
		return
	}
	if err := cm.redis.Set(ctx, detailKey(version, listing.ID), data, cm.ttl).Err(); err != nil {
		cm.logger.Debug("Failed to cache listing", zap.String("vm_id", listing.ID), zap.Error(err))
	}
}

// InvalidateListing bumps the list version and, for a single listing, its
// detail version.
func (cm *CacheManager) InvalidateListing(ctx context.Context, id string) {
	if err := cm.redis.Incr(ctx, CacheVersionKey).Err(); err != nil {
		cm.logger.Warn("Failed to invalidate listing cache", zap.Error(err))
	}
	if id == "" {
		return
	}
	if err := cm.redis.Incr(ctx, ListingVersionPrefix+id).Err(); err != nil {
		cm.logger.Warn("Failed to invalidate listing detail cache", zap.String("vm_id", id), zap.Error(err))
	}
}

// version reads a version counter. A counter never bumped reads as zero.
func (cm *CacheManager) version(ctx context.Context, key string) (int64, error) {
	ver, err := cm.redis.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

func detailKey(version int64, id string) string {
	return fmt.Sprintf("%s%s:v:%d", ListingCachePrefix, id, version)
}

func (cm *CacheManager) listKey(version int64, q repository.ListingQuery) string {
	f := q.Filter
	return fmt.Sprintf(
		"%s%d:s:%d:l:%d:o:%s:min:%s:max:%s:os:%s:p:%s:cpu:%d:ram:%d:st:%s:q:%s",
		ListingListCachePrefix,
		version,
		q.Skip,
		q.Limit,
		q.Sort,
		formatFloatForCache(f.MinPrice),
		formatFloatForCache(f.MaxPrice),
		f.OS,
		f.Provider,
		f.MinCPU,
		f.MinRAM,
		f.Status,
		f.Search,
	)
}

func (cm *CacheManager) record(ctx context.Context, hit bool) {
	metric := awspkg.MetricCacheMisses
	if hit {
		metric = awspkg.MetricCacheHits
	}
	_ = cm.metrics.RecordCount(ctx, metric, map[string]string{"Cache": "listings"})
}

func formatFloatForCache(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}
