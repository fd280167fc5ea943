package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Harishith4529/shortlink/internal/models"
	"github.com/Harishith4529/shortlink/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing.
// It mirrors the store's semantics, including permanent retirement of
// hard-deleted codes.
type MockLinkRepository struct {
	mu      sync.RWMutex
	links   map[string]*models.Link
	retired map[string]bool
	nextID  int64
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links:   make(map[string]*models.Link),
		retired: make(map[string]bool),
		nextID:  1,
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[link.Code]; exists {
		return repository.ErrCodeExists
	}
	if m.retired[link.Code] {
		return repository.ErrCodeExists
	}

	stored := *link
	stored.ID = m.nextID
	m.nextID++
	m.links[link.Code] = &stored
	link.ID = stored.ID
	return nil
}

func (m *MockLinkRepository) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *MockLinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	links := []models.Link{}
	for _, link := range m.links {
		if link.OwnerID == ownerID {
			links = append(links, *link)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].ID > links[j].ID
		}
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

func (m *MockLinkRepository) Update(ctx context.Context, code, ownerID string, patch *models.LinkPatch) (*models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	if link.OwnerID != ownerID {
		return nil, repository.ErrNotOwner
	}

	if patch.OriginalURL != nil {
		link.OriginalURL = *patch.OriginalURL
	}
	if patch.Title != nil {
		title := *patch.Title
		link.Title = &title
	}
	if patch.IsActive != nil {
		link.IsActive = *patch.IsActive
	}

	copied := *link
	return &copied, nil
}

func (m *MockLinkRepository) IncrementClicks(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[code]
	if !exists {
		return repository.ErrLinkNotFound
	}
	link.ClickCount++
	return nil
}

func (m *MockLinkRepository) SoftDelete(ctx context.Context, code, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[code]
	if !exists {
		return repository.ErrLinkNotFound
	}
	if link.OwnerID != ownerID {
		return repository.ErrNotOwner
	}
	link.IsActive = false
	return nil
}

func (m *MockLinkRepository) HardDelete(ctx context.Context, code, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[code]
	if !exists {
		return repository.ErrLinkNotFound
	}
	if link.OwnerID != ownerID {
		return repository.ErrNotOwner
	}
	delete(m.links, code)
	m.retired[code] = true
	return nil
}

func (m *MockLinkRepository) GetLinkIDByCode(ctx context.Context, code string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[code]
	if !exists {
		return 0, repository.ErrLinkNotFound
	}
	return link.ID, nil
}

func (m *MockLinkRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = make(map[string]*models.Link)
	m.retired = make(map[string]bool)
	m.nextID = 1
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.Link
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Link),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.cache[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, code string, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *link
	m.cache[code] = &copied
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, code)
	return nil
}

func (m *MockCacheRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*models.Link)
}

// MockClickRepository implements repository.ClickRepository for testing
type MockClickRepository struct {
	mu     sync.RWMutex
	clicks map[string][]*models.Click // code -> clicks
}

func NewMockClickRepository() *MockClickRepository {
	return &MockClickRepository{
		clicks: make(map[string][]*models.Click),
	}
}

func (m *MockClickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks[click.Code] = append(m.clicks[click.Code], click)
	return nil
}

func (m *MockClickRepository) GetStats(ctx context.Context, code string) (*models.ClickStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	uniqueIPs := make(map[string]bool)
	for _, click := range m.clicks[code] {
		uniqueIPs[click.IPAddress] = true
	}

	return &models.ClickStats{
		Code:         code,
		ClickCount:   int64(len(m.clicks[code])),
		TotalClicks:  int64(len(m.clicks[code])),
		UniqueClicks: int64(len(uniqueIPs)),
	}, nil
}

func (m *MockClickRepository) GetDailyStats(ctx context.Context, code string, days int) ([]models.DailyClickStats, error) {
	return []models.DailyClickStats{}, nil
}

func (m *MockClickRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = make(map[string][]*models.Click)
}
