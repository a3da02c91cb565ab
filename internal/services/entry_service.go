package services

import (
	"context"
	"log"
	"strings"

	"lifelog/internal/apperr"
	"lifelog/internal/models"
	"lifelog/internal/repositories"
	"lifelog/pkg/imagestore"
	"lifelog/pkg/rabbitmq"

	"golang.org/x/sync/errgroup"
)

// EntryService handles business logic for diary entries: ownership
// enforcement and keeping the external image store in step with the records.
type EntryService struct {
	entryRepo repositories.EntryRepository
	images    imagestore.Store
	mqClient  *rabbitmq.Client
}

// NewEntryService creates a new EntryService. mqClient may be nil; event
// publishing is then skipped.
func NewEntryService(entryRepo repositories.EntryRepository, images imagestore.Store, mqClient *rabbitmq.Client) *EntryService {
	return &EntryService{
		entryRepo: entryRepo,
		images:    images,
		mqClient:  mqClient,
	}
}

// uploadAll uploads every payload concurrently and returns the references in
// input order. The first failure aborts the whole batch; uploads already in
// flight are not rolled back.
func (s *EntryService) uploadAll(ctx context.Context, payloads []string) ([]string, error) {
	refs := make([]string, len(payloads))
	g, ctx := errgroup.WithContext(ctx)
	for i, payload := range payloads {
		i, payload := i, payload
		g.Go(func() error {
			ref, err := s.images.Upload(ctx, payload, imagestore.EntryImage)
			if err != nil {
				return err
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

// deleteAll releases every reference. With escalate set, a hard failure stops
// and returns the error; otherwise failures are logged and skipped.
func (s *EntryService) deleteAll(ctx context.Context, refs []string, escalate bool) error {
	for _, ref := range refs {
		status, err := s.images.Delete(ctx, ref)
		if status != imagestore.StatusFailed {
			continue
		}
		if escalate {
			return apperr.Wrap(apperr.Dependency, "Failed to delete entry image", err)
		}
		log.Printf("Warning: failed to delete image %s: %v", ref, err)
	}
	return nil
}

func (s *EntryService) publishEvent(event, entryID, userID string) {
	if s.mqClient == nil {
		return
	}
	if err := s.mqClient.PublishEntryEvent(event, entryID, userID); err != nil {
		log.Printf("Warning: failed to publish %s event for entry %s: %v", event, entryID, err)
	}
}

// Create uploads the image payloads and persists a new entry owned by
// ownerID. Nothing is persisted if any upload fails.
func (s *EntryService) Create(ctx context.Context, ownerID, title, content string, images []string) (*models.Entry, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return nil, apperr.New(apperr.Validation, "Fill title and content")
	}

	refs, err := s.uploadAll(ctx, images)
	if err != nil {
		return nil, err
	}

	entry := &models.Entry{
		UserID:  ownerID,
		Title:   title,
		Content: content,
		Images:  refs,
	}
	if err := s.entryRepo.Create(entry); err != nil {
		return nil, err
	}

	s.publishEvent("entry.created", entry.ID, ownerID)
	return entry, nil
}

// List returns all entries owned by ownerID, newest first.
func (s *EntryService) List(ctx context.Context, ownerID string) ([]models.Entry, error) {
	return s.entryRepo.GetAllByUser(ownerID)
}

// GetByID fetches one entry, enforcing ownership. A foreign entry is
// forbidden, a missing one not found.
func (s *EntryService) GetByID(ctx context.Context, ownerID, entryID string) (*models.Entry, error) {
	entry, err := s.entryRepo.GetByID(entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != ownerID {
		return nil, apperr.New(apperr.Authorization, "Unauthorized")
	}
	return entry, nil
}

// Update edits an owned entry. A non-empty newImages list replaces the image
// set wholesale: the stored references are deleted from the image store, the
// new payloads uploaded, and the list persisted in input order. Empty title,
// content or newImages each mean "keep existing". The owner never changes.
func (s *EntryService) Update(ctx context.Context, ownerID, entryID, title, content string, newImages []string) (*models.Entry, error) {
	entry, err := s.GetByID(ctx, ownerID, entryID)
	if err != nil {
		return nil, err
	}

	if len(newImages) > 0 {
		if err := s.deleteAll(ctx, entry.Images, true); err != nil {
			return nil, err
		}
		refs, err := s.uploadAll(ctx, newImages)
		if err != nil {
			return nil, err
		}
		entry.Images = refs
	}

	if strings.TrimSpace(title) != "" {
		entry.Title = title
	}
	if strings.TrimSpace(content) != "" {
		entry.Content = content
	}

	if err := s.entryRepo.Update(entry); err != nil {
		return nil, err
	}

	s.publishEvent("entry.updated", entry.ID, ownerID)
	return entry, nil
}

// Delete removes an owned entry. Image deletions are best-effort: a failed
// delete is logged and never keeps the record alive.
func (s *EntryService) Delete(ctx context.Context, ownerID, entryID string) error {
	entry, err := s.GetByID(ctx, ownerID, entryID)
	if err != nil {
		return err
	}

	_ = s.deleteAll(ctx, entry.Images, false)

	if err := s.entryRepo.Delete(entry.ID); err != nil {
		return err
	}

	s.publishEvent("entry.deleted", entry.ID, ownerID)
	return nil
}
