package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Harishith4529/shortlink/internal/models"
	"github.com/Harishith4529/shortlink/internal/repository"
	"go.uber.org/zap"
)

// Service-level error taxonomy. Handlers map these to HTTP statuses;
// the service never returns free-text failures.
var (
	ErrInvalidURL          = errors.New("invalid destination URL")
	ErrInvalidCode         = errors.New("invalid custom code")
	ErrCodeTaken           = errors.New("custom code already taken")
	ErrGenerationExhausted = errors.New("code generation attempts exhausted")
	ErrNotFound            = errors.New("link not found")
	ErrInactive            = errors.New("link is inactive")
	ErrExpired             = errors.New("link has expired")
	ErrForbidden           = errors.New("caller does not own the link")
)

const (
	defaultCacheTTL = 24 * time.Hour
)

// LinkService is the boundary the presentation layer calls. Ownership
// is taken verbatim from the identity middleware; the service trusts it.
type LinkService interface {
	CreateLink(ctx context.Context, ownerID string, input *models.CreateLinkInput) (*models.Link, error)
	ResolveLink(ctx context.Context, code string) (string, error)
	ListLinks(ctx context.Context, ownerID string) ([]models.Link, error)
	EditLink(ctx context.Context, code, callerID string, patch *models.LinkPatch) (*models.Link, error)
	DeleteLink(ctx context.Context, code, callerID string) (models.DeleteState, error)
}

type linkService struct {
	linkRepo  repository.LinkRepository
	cacheRepo repository.CacheRepository
	codegen   CodeGenerator
	logger    *zap.Logger
}

func NewLinkService(
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	codegen CodeGenerator,
	logger *zap.Logger,
) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		linkRepo:  linkRepo,
		cacheRepo: cacheRepo,
		codegen:   codegen,
		logger:    logger,
	}
}

// CreateLink allocates a code and persists the record. Reservation is
// the store insert itself: for a custom code one attempt decides
// conflict, for generated codes the insert is retried a bounded number
// of times on collision.
func (s *linkService) CreateLink(ctx context.Context, ownerID string, input *models.CreateLinkInput) (*models.Link, error) {
	if err := validateURL(input.OriginalURL); err != nil {
		return nil, err
	}

	link := &models.Link{
		OriginalURL: input.OriginalURL,
		OwnerID:     ownerID,
		Title:       input.Title,
		IsActive:    true,
		CreatedAt:   time.Now(),
		ExpiresAt:   input.ExpiresAt,
	}

	if input.CustomCode != nil && *input.CustomCode != "" {
		if err := s.codegen.ValidateCustomCode(*input.CustomCode); err != nil {
			return nil, err
		}
		link.Code = *input.CustomCode

		if err := s.linkRepo.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrCodeExists) {
				return nil, ErrCodeTaken
			}
			return nil, err
		}
	} else {
		if err := s.createWithGeneratedCode(ctx, link); err != nil {
			return nil, err
		}
	}

	s.cacheLink(ctx, link)

	return link, nil
}

func (s *linkService) createWithGeneratedCode(ctx context.Context, link *models.Link) error {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := s.codegen.Generate()
		if err != nil {
			return fmt.Errorf("failed to generate code: %w", err)
		}
		link.Code = code

		err = s.linkRepo.Create(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrCodeExists) {
			return err
		}

		s.logger.Debug("Generated code collided, retrying",
			zap.String("code", code),
			zap.Int("attempt", attempt+1),
		)
	}

	return ErrGenerationExhausted
}

// ResolveLink maps a code to its destination for a redirect. The
// counter increment is advisory: a failed increment is logged and the
// redirect still succeeds.
func (s *linkService) ResolveLink(ctx context.Context, code string) (string, error) {
	link, err := s.getLink(ctx, code)
	if err != nil {
		return "", err
	}

	// Expiry wins over inactivity in user-facing terms. It is derived
	// from expires_at, never written back to is_active.
	if link.Expired(time.Now()) {
		return "", ErrExpired
	}
	if !link.IsActive {
		return "", ErrInactive
	}

	if err := s.linkRepo.IncrementClicks(ctx, code); err != nil {
		s.logger.Warn("Failed to increment click count",
			zap.String("code", code),
			zap.Error(err),
		)
	}

	return link.OriginalURL, nil
}

func (s *linkService) ListLinks(ctx context.Context, ownerID string) ([]models.Link, error) {
	return s.linkRepo.ListByOwner(ctx, ownerID)
}

// EditLink applies an owner-authorized partial update. Re-activating an
// inactive link through the patch is allowed: soft delete is just a
// field flip.
func (s *linkService) EditLink(ctx context.Context, code, callerID string, patch *models.LinkPatch) (*models.Link, error) {
	if patch.OriginalURL != nil {
		if err := validateURL(*patch.OriginalURL); err != nil {
			return nil, err
		}
	}

	if patch.Empty() {
		link, err := s.getLink(ctx, code)
		if err != nil {
			return nil, err
		}
		if link.OwnerID != callerID {
			return nil, ErrForbidden
		}
		return link, nil
	}

	link, err := s.linkRepo.Update(ctx, code, callerID, patch)
	if err != nil {
		return nil, mapOwnershipError(err)
	}

	// Stale cached copies would keep serving the old destination or
	// activity state.
	s.invalidateCache(ctx, code)

	return link, nil
}

// DeleteLink runs the two-step deletion state machine: an active link
// is deactivated (reversible), an already-inactive link is removed for
// good and its code permanently retired.
func (s *linkService) DeleteLink(ctx context.Context, code, callerID string) (models.DeleteState, error) {
	link, err := s.getLink(ctx, code)
	if err != nil {
		return "", err
	}
	if link.OwnerID != callerID {
		return "", ErrForbidden
	}

	if link.IsActive {
		if err := s.linkRepo.SoftDelete(ctx, code, callerID); err != nil {
			return "", mapOwnershipError(err)
		}
		s.invalidateCache(ctx, code)
		return models.DeleteStateInactive, nil
	}

	if err := s.linkRepo.HardDelete(ctx, code, callerID); err != nil {
		return "", mapOwnershipError(err)
	}
	s.invalidateCache(ctx, code)
	return models.DeleteStateRemoved, nil
}

// getLink reads through the cache. Cache failures degrade to the
// database, never to an error.
func (s *linkService) getLink(ctx context.Context, code string) (*models.Link, error) {
	if link, err := s.cacheRepo.Get(ctx, code); err == nil {
		return link, nil
	}

	link, err := s.linkRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.cacheLink(ctx, link)

	return link, nil
}

func (s *linkService) cacheLink(ctx context.Context, link *models.Link) {
	ttl := defaultCacheTTL
	if link.ExpiresAt != nil {
		if until := time.Until(*link.ExpiresAt); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		return
	}
	if err := s.cacheRepo.Set(ctx, link.Code, link, ttl); err != nil {
		s.logger.Warn("Failed to cache link", zap.String("code", link.Code), zap.Error(err))
	}
}

func (s *linkService) invalidateCache(ctx context.Context, code string) {
	if err := s.cacheRepo.Delete(ctx, code); err != nil {
		s.logger.Warn("Failed to invalidate cached link", zap.String("code", code), zap.Error(err))
	}
}

func mapOwnershipError(err error) error {
	switch {
	case errors.Is(err, repository.ErrLinkNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrNotOwner):
		return ErrForbidden
	default:
		return err
	}
}

// validateURL accepts absolute http(s) URLs with a host.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
