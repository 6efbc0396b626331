// Package library is the local authoring surface: adding and deleting
// photos, ratings and tags. Every mutation goes through the store's
// transactional write path, so each one lands in the change ledger under
// the local author tag.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/entity"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/store"
)

const (
	minRating = 1
	maxRating = 5
)

var (
	errMissingStoreHandle = errors.New("library: store handle is required")
	noOpLogger            = zap.NewNop()

	// ErrInvalidName indicates an empty or oversized display name.
	ErrInvalidName = errors.New("library: invalid name")
	// ErrEmptyImage indicates a photo submitted without image bytes.
	ErrEmptyImage = errors.New("library: image data is required")
	// ErrInvalidRating indicates a rating value outside 1 through 5.
	ErrInvalidRating = errors.New("library: rating must be between 1 and 5")
)

// Config describes the service dependencies.
type Config struct {
	Store  *store.Store
	IDs    entity.IDProvider
	Clock  func() time.Time
	Logger *zap.Logger
}

// Service authors local content. New entities always start in the owned
// partition's default zone; sharing moves them later.
type Service struct {
	store  *store.Store
	ids    entity.IDProvider
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the library service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStoreHandle
	}
	ids := cfg.IDs
	if ids == nil {
		ids = entity.NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{store: cfg.Store, ids: ids, clock: clock, logger: logger}, nil
}

// AddPhotoInput carries the content of a new photo. Thumbnail is optional;
// TagNames are applied the way ToggleTag would, reusing same-named tags
// already in the default zone.
type AddPhotoInput struct {
	UniqueName string
	FullImage  []byte
	Thumbnail  []byte
	TagNames   []string
}

// AddPhoto persists a photo with its binaries and initial tags in one
// atomic write.
func (s *Service) AddPhoto(ctx context.Context, input AddPhotoInput) (*entity.Photo, error) {
	name := strings.TrimSpace(input.UniqueName)
	if name == "" {
		return nil, fmt.Errorf("%w: empty unique name", ErrInvalidName)
	}
	if len(input.FullImage) == 0 {
		return nil, ErrEmptyImage
	}

	photoID, err := s.ids.NewID()
	if err != nil {
		return nil, err
	}
	now := s.clock().UTC().Unix()
	photo := entity.Photo{
		ID:               photoID,
		UniqueName:       name,
		ZoneID:           entity.DefaultZone.String(),
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}

	err = s.store.InTransaction(ctx, store.PartitionOwned, s.store.LocalAuthor(), func(txn *store.Txn) error {
		if err := txn.Insert(&photo); err != nil {
			return err
		}
		dataID, err := s.ids.NewID()
		if err != nil {
			return err
		}
		data := entity.PhotoData{ID: dataID, PhotoID: photo.ID, ZoneID: photo.ZoneID, Data: input.FullImage}
		if err := txn.Insert(&data); err != nil {
			return err
		}
		if len(input.Thumbnail) > 0 {
			thumbID, err := s.ids.NewID()
			if err != nil {
				return err
			}
			thumb := entity.Thumbnail{ID: thumbID, PhotoID: photo.ID, ZoneID: photo.ZoneID, Data: input.Thumbnail}
			if err := txn.Insert(&thumb); err != nil {
				return err
			}
		}
		for _, tagName := range input.TagNames {
			if _, err := s.linkTag(txn, &photo, tagName); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("added photo", zap.String("photo_id", photo.ID), zap.String("unique_name", name))
	return &photo, nil
}

// DeletePhoto removes the photo and its dependent rows: binaries, ratings
// and tag links. Tags themselves survive, since other photos may link to
// them.
func (s *Service) DeletePhoto(ctx context.Context, photoID entity.Identity) error {
	record, partition, err := s.store.LocateByIdentity(ctx, entity.KindPhoto, photoID)
	if err != nil {
		return err
	}
	photo := record.(*entity.Photo)

	return s.store.InTransaction(ctx, partition, s.store.LocalAuthor(), func(txn *store.Txn) error {
		var thumbnails []entity.Thumbnail
		if err := txn.DB().Where("photo_id = ?", photo.ID).Find(&thumbnails).Error; err != nil {
			return err
		}
		for i := range thumbnails {
			if err := txn.Delete(&thumbnails[i]); err != nil {
				return err
			}
		}
		var blobs []entity.PhotoData
		if err := txn.DB().Where("photo_id = ?", photo.ID).Find(&blobs).Error; err != nil {
			return err
		}
		for i := range blobs {
			if err := txn.Delete(&blobs[i]); err != nil {
				return err
			}
		}
		var ratings []entity.Rating
		if err := txn.DB().Where("photo_id = ?", photo.ID).Find(&ratings).Error; err != nil {
			return err
		}
		for i := range ratings {
			if err := txn.Delete(&ratings[i]); err != nil {
				return err
			}
		}
		var links []entity.PhotoTag
		if err := txn.DB().Where("photo_id = ?", photo.ID).Find(&links).Error; err != nil {
			return err
		}
		for i := range links {
			if err := txn.Delete(&links[i]); err != nil {
				return err
			}
		}
		return txn.Delete(photo)
	})
}

// AddRating attaches a 1-5 rating to the photo, in whichever partition and
// zone the photo currently lives. Ratings never merge; every call adds a
// new row.
func (s *Service) AddRating(ctx context.Context, photoID entity.Identity, value int16) (*entity.Rating, error) {
	if value < minRating || value > maxRating {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRating, value)
	}
	record, partition, err := s.store.LocateByIdentity(ctx, entity.KindPhoto, photoID)
	if err != nil {
		return nil, err
	}
	photo := record.(*entity.Photo)

	ratingID, err := s.ids.NewID()
	if err != nil {
		return nil, err
	}
	rating := entity.Rating{ID: ratingID, PhotoID: photo.ID, ZoneID: photo.ZoneID, Value: value}
	err = s.store.InTransaction(ctx, partition, s.store.LocalAuthor(), func(txn *store.Txn) error {
		return txn.Insert(&rating)
	})
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

// DeleteRating removes one rating row.
func (s *Service) DeleteRating(ctx context.Context, ratingID entity.Identity) error {
	record, partition, err := s.store.LocateByIdentity(ctx, entity.KindRating, ratingID)
	if err != nil {
		return err
	}
	return s.store.InTransaction(ctx, partition, s.store.LocalAuthor(), func(txn *store.Txn) error {
		return txn.Delete(record)
	})
}

// ToggleTag links the photo to the named tag, or unlinks it when the link
// already exists. Linking reuses a same-named tag in the photo's zone if
// one exists; otherwise a new tag is created, which is what lets
// independent peers race and the deduplicator converge them later.
func (s *Service) ToggleTag(ctx context.Context, photoID entity.Identity, tagName string) error {
	name := strings.TrimSpace(tagName)
	if name == "" {
		return fmt.Errorf("%w: empty tag name", ErrInvalidName)
	}
	record, partition, err := s.store.LocateByIdentity(ctx, entity.KindPhoto, photoID)
	if err != nil {
		return err
	}
	photo := record.(*entity.Photo)

	return s.store.InTransaction(ctx, partition, s.store.LocalAuthor(), func(txn *store.Txn) error {
		tags, err := store.TagsNamed(txn.DB(), name, photo.RecordZone())
		if err != nil {
			return err
		}
		for i := range tags {
			var links []entity.PhotoTag
			err := txn.DB().Where("photo_id = ? AND tag_id = ?", photo.ID, tags[i].ID).Find(&links).Error
			if err != nil {
				return err
			}
			if len(links) == 0 {
				continue
			}
			for j := range links {
				if err := txn.Delete(&links[j]); err != nil {
					return err
				}
			}
			return nil
		}
		_, err = s.linkTag(txn, photo, name)
		return err
	})
}

// linkTag links the photo to a tag with the given name, reusing one already
// in the photo's zone or creating a fresh tag with a new creation
// tie-breaker.
func (s *Service) linkTag(txn *store.Txn, photo *entity.Photo, tagName string) (*entity.Tag, error) {
	name := strings.TrimSpace(tagName)
	if name == "" {
		return nil, fmt.Errorf("%w: empty tag name", ErrInvalidName)
	}
	tags, err := store.TagsNamed(txn.DB(), name, photo.RecordZone())
	if err != nil {
		return nil, err
	}
	var tag *entity.Tag
	if len(tags) > 0 {
		tag = &tags[0]
	} else {
		tagID, err := s.ids.NewID()
		if err != nil {
			return nil, err
		}
		creationUUID, err := s.ids.NewID()
		if err != nil {
			return nil, err
		}
		tag = &entity.Tag{ID: tagID, Name: name, ZoneID: photo.ZoneID, CreationUUID: creationUUID}
		if err := txn.Insert(tag); err != nil {
			return nil, err
		}
	}

	linkExists, err := store.LinkExists(txn.DB(), photo.ID, tag.ID)
	if err != nil {
		return nil, err
	}
	if linkExists {
		return tag, nil
	}
	linkID, err := s.ids.NewID()
	if err != nil {
		return nil, err
	}
	link := entity.PhotoTag{ID: linkID, PhotoID: photo.ID, TagID: tag.ID, ZoneID: photo.ZoneID}
	if err := txn.Insert(&link); err != nil {
		return nil, err
	}
	return tag, nil
}
