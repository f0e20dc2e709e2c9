package service

import (
	"context"
	"log"
	"yard-pick/internal/models"
	"yard-pick/internal/repository"
)

// SpotService exposes the read side of the yard spot registry.
// Occupancy only changes through JobService.Stage and JobService.Load.
type SpotService struct {
	repo repository.JobRepository
}

// NewSpotService creates a new spot service
func NewSpotService(repo repository.JobRepository) *SpotService {
	return &SpotService{repo: repo}
}

// ListAvailable returns the free spots of a yard
func (s *SpotService) ListAvailable(ctx context.Context, yardID string) ([]*models.YardSpot, error) {
	return s.repo.ListAvailableSpots(ctx, yardID)
}

// ListAll returns every spot of a yard with its occupancy
func (s *SpotService) ListAll(ctx context.Context, yardID string) ([]*models.YardSpot, error) {
	return s.repo.ListSpots(ctx, yardID)
}

// Provision makes sure the configured spots exist
func (s *SpotService) Provision(ctx context.Context, spots []models.YardSpot) error {
	if err := s.repo.ProvisionSpots(ctx, spots); err != nil {
		return err
	}
	log.Printf("provisioned %d yard spots", len(spots))
	return nil
}
