package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

const completionFactsCacheKey = "completion-facts"

// CompletionFactSource fetches completed visits from the field-visit collaborator.
type CompletionFactSource interface {
	Fetch(ctx context.Context) ([]models.CompletionFact, error)
}

// HTTPCompletionFactSource reads facts from a JSON endpoint. The body is either an array of facts or
// an object with the array under "data".
type HTTPCompletionFactSource struct {
	url    string
	client *http.Client
}

// NewHTTPCompletionFactSource builds a source with the given request timeout.
func NewHTTPCompletionFactSource(url string, timeout time.Duration) *HTTPCompletionFactSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPCompletionFactSource{url: url, client: &http.Client{Timeout: timeout}}
}

// Fetch performs one GET against the upstream.
func (s *HTTPCompletionFactSource) Fetch(ctx context.Context) ([]models.CompletionFact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build completion facts request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch completion facts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch completion facts: upstream returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read completion facts: %w", err)
	}
	return decodeCompletionFacts(body)
}

func decodeCompletionFacts(body []byte) ([]models.CompletionFact, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var facts []models.CompletionFact
		if err := json.Unmarshal(body, &facts); err != nil {
			return nil, fmt.Errorf("decode completion facts: %w", err)
		}
		return facts, nil
	}
	var envelope struct {
		Data []models.CompletionFact `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode completion facts: %w", err)
	}
	return envelope.Data, nil
}

// CompletionFactService is the time-bounded cache of upstream completion facts handed to reporting.
// The shared Redis cache is preferred; without it a process-local snapshot with the same TTL is kept.
type CompletionFactService struct {
	source CompletionFactSource
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	local *models.CompletionFactSnapshot
}

// NewCompletionFactService constructs the service. A nil source means the collaborator is not configured.
func NewCompletionFactService(source CompletionFactSource, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CompletionFactService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionFactService{source: source, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// Snapshot returns cached facts, fetching from upstream on a miss, on expiry, or when refresh is set.
func (s *CompletionFactService) Snapshot(ctx context.Context, refresh bool) (*models.CompletionFactSnapshot, error) {
	if s.source == nil {
		return nil, appErrors.Clone(appErrors.ErrUpstreamUnavailable, "completion fact source not configured")
	}

	if !refresh {
		if snapshot := s.cached(ctx); snapshot != nil {
			return snapshot, nil
		}
	}

	facts, err := s.source.Fetch(ctx)
	if err != nil {
		s.logger.Warn("completion fact fetch failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "completion fact source unavailable")
	}
	sort.SliceStable(facts, func(i, j int) bool { return facts[i].CompletedAt.Before(facts[j].CompletedAt) })
	if facts == nil {
		facts = []models.CompletionFact{}
	}
	snapshot := &models.CompletionFactSnapshot{Facts: facts, FetchedAt: s.now().UTC()}
	s.store(ctx, snapshot)
	return snapshot, nil
}

// ForEquipment filters a snapshot to one equipment number.
func (s *CompletionFactService) ForEquipment(ctx context.Context, equipmentNumber string, refresh bool) (*models.CompletionFactSnapshot, error) {
	snapshot, err := s.Snapshot(ctx, refresh)
	if err != nil {
		return nil, err
	}
	number := strings.TrimSpace(equipmentNumber)
	if number == "" {
		return snapshot, nil
	}
	filtered := &models.CompletionFactSnapshot{Facts: []models.CompletionFact{}, FetchedAt: snapshot.FetchedAt}
	for _, fact := range snapshot.Facts {
		if strings.EqualFold(fact.EquipmentNumber, number) {
			filtered.Facts = append(filtered.Facts, fact)
		}
	}
	return filtered, nil
}

func (s *CompletionFactService) cached(ctx context.Context) *models.CompletionFactSnapshot {
	if s.cache.Enabled() {
		var snapshot models.CompletionFactSnapshot
		hit, err := s.cache.Get(ctx, completionFactsCacheKey, &snapshot)
		if err == nil && hit {
			return &snapshot
		}
		if err == nil {
			return nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local != nil && s.now().Sub(s.local.FetchedAt) < s.ttl {
		return s.local
	}
	return nil
}

func (s *CompletionFactService) store(ctx context.Context, snapshot *models.CompletionFactSnapshot) {
	s.mu.Lock()
	s.local = snapshot
	s.mu.Unlock()
	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, completionFactsCacheKey, snapshot, s.ttl)
	}
}
