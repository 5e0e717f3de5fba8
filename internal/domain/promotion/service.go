package promotion

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// Service administers offers.
type Service struct {
	repo Repository
}

// NewService returns a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and stores a new offer.
func (s *Service) Create(ctx context.Context, o Offer) (*Offer, error) {
	o.Name = strings.TrimSpace(o.Name)
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &o); err != nil {
		return nil, errors.Wrap(err, "create offer")
	}
	return &o, nil
}

// Update replaces an existing offer. Changing the target kind moves the offer
// from a product to a category (or back) in one step.
func (s *Service) Update(ctx context.Context, o Offer) (*Offer, error) {
	if _, err := s.repo.Get(ctx, o.ID); err != nil {
		return nil, err
	}
	o.Name = strings.TrimSpace(o.Name)
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &o); err != nil {
		return nil, errors.Wrapf(err, "update offer %d", o.ID)
	}
	return &o, nil
}
