package services

import (
	"log"
	"sync"
	"time"

	"github.com/pixelforge/backend/internal/storage"
)

// EvictionService removes ephemeral assets past their TTL so the store
// stays bounded. Runs a sweep on an interval until stopped.
type EvictionService struct {
	store    *storage.Store
	ttl      time.Duration
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewEvictionService(store *storage.Store, ttl, interval time.Duration) *EvictionService {
	return &EvictionService{
		store:    store,
		ttl:      ttl,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background sweep loop
func (s *EvictionService) Start() {
	log.Printf("Starting asset eviction service (TTL %v, interval %v)", s.ttl, s.interval)
	go s.run()
}

// Stop stops the background sweep loop. Safe to call more than once.
func (s *EvictionService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *EvictionService) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			removed, err := s.store.Sweep(s.ttl)
			if err != nil {
				log.Printf("Asset eviction sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("Evicted %d expired assets", removed)
			}
		}
	}
}
