package adapter

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
)

// Registry maps brands to their adapter implementation. In mock mode every
// brand is backed by a fixture; constructing a live adapter with mock mode on
// is a fatal startup error, since no network I/O is permitted then.
type Registry struct {
	adapters map[domain.Brand]VendorAdapter
	mockMode bool
}

// Lookup returns the adapter for a brand.
func (r *Registry) Lookup(brand domain.Brand) (VendorAdapter, bool) {
	a, ok := r.adapters[brand]
	return a, ok
}

// Brands lists registered brands.
func (r *Registry) Brands() []domain.Brand {
	brands := make([]domain.Brand, 0, len(r.adapters))
	for b := range r.adapters {
		brands = append(brands, b)
	}
	return brands
}

// MockMode reports whether the registry was built for mock mode.
func (r *Registry) MockMode() bool { return r.mockMode }

// NewMockRegistry builds a registry where every brand reads from its fixture
// document under fixtureDir (<brand lowercase>.json).
func NewMockRegistry(fixtureDir string) (*Registry, error) {
	adapters := make(map[domain.Brand]VendorAdapter, len(domain.AllBrands()))
	for _, brand := range domain.AllBrands() {
		path := filepath.Join(fixtureDir, strings.ToLower(string(brand))+".json")
		mock, err := NewMockAdapter(brand, path)
		if err != nil {
			return nil, fmt.Errorf("mock adapter for %s: %w", brand, err)
		}
		adapters[brand] = mock
		logger.Info("Registered mock adapter",
			zap.String("brand", string(brand)),
			zap.String("fixture", path),
		)
	}
	return &Registry{adapters: adapters, mockMode: true}, nil
}

// NewLiveRegistry builds the live adapters. mockMode must be false: in mock
// mode no adapter may perform network I/O, so asking for live adapters then
// is a programming error surfaced at startup.
func NewLiveRegistry(mockMode bool, requestTimeoutSec int) (*Registry, error) {
	if mockMode {
		return nil, fmt.Errorf("live adapters requested while INTEGRATION_MOCK_MODE is set")
	}
	adapters := map[domain.Brand]VendorAdapter{
		domain.BrandSolis:  NewSolisAdapter(requestTimeoutSec),
		domain.BrandHuawei: NewHuaweiAdapter(requestTimeoutSec),
		domain.BrandGoodwe: NewGoodweAdapter(requestTimeoutSec),
		domain.BrandDele:   NewDeleAdapter(requestTimeoutSec),
	}
	for brand := range adapters {
		logger.Info("Registered live adapter", zap.String("brand", string(brand)))
	}
	return &Registry{adapters: adapters, mockMode: false}, nil
}
