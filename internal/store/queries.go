package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/entity"
)

// TagsNamed returns every tag in the zone carrying the given name, ordered
// by the creation tie-breaker ascending. The first element is the
// deterministic deduplication winner. Usable inside or outside a Txn.
func TagsNamed(db *gorm.DB, name string, zone entity.ZoneID) ([]entity.Tag, error) {
	var tags []entity.Tag
	err := db.
		Where("name = ? AND zone_id = ?", name, zone.String()).
		Order("creation_uuid ASC").
		Find(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return tags, nil
}

// LinksForTag returns the photo links pointing at a tag.
func LinksForTag(db *gorm.DB, tagID string) ([]entity.PhotoTag, error) {
	var links []entity.PhotoTag
	err := db.Where("tag_id = ?", tagID).Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return links, nil
}

// LinkExists reports whether a photo already links to a tag.
func LinkExists(db *gorm.DB, photoID, tagID string) (bool, error) {
	var count int64
	err := db.Model(&entity.PhotoTag{}).
		Where("photo_id = ? AND tag_id = ?", photoID, tagID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return count > 0, nil
}

// ZoneRecords loads every record of every kind living in the zone.
func ZoneRecords(ctx context.Context, db *gorm.DB, zone entity.ZoneID) ([]entity.Record, error) {
	var records []entity.Record
	for _, kind := range entity.Kinds() {
		loaded, err := loadRecords(ctx, db, kind, "zone_id = ?", zone.String())
		if err != nil {
			return nil, err
		}
		records = append(records, loaded...)
	}
	return records, nil
}

// CollectSubgraph walks the static relationship schema from a photo and
// returns every record reachable from it: the photo's binaries, ratings and
// tag links, the linked tags, and transitively any other photos those tags
// link to. Promoting an entity into a shared zone carries its whole
// connected object graph along.
func CollectSubgraph(ctx context.Context, db *gorm.DB, photoID entity.Identity) ([]entity.Record, error) {
	visitedPhotos := map[string]bool{}
	visitedTags := map[string]bool{}
	var records []entity.Record

	queue := []string{photoID.String()}
	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]
		if visitedPhotos[currentID] {
			continue
		}
		visitedPhotos[currentID] = true

		var photo entity.Photo
		err := db.WithContext(ctx).Where("id = ?", currentID).Take(&photo).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if currentID == photoID.String() {
				return nil, ErrNotFound
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		records = append(records, &photo)

		for _, childKind := range []entity.Kind{entity.KindThumbnail, entity.KindPhotoData, entity.KindRating} {
			loaded, err := loadRecords(ctx, db, childKind, "photo_id = ?", currentID)
			if err != nil {
				return nil, err
			}
			records = append(records, loaded...)
		}

		var links []entity.PhotoTag
		if err := db.WithContext(ctx).Where("photo_id = ?", currentID).Find(&links).Error; err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		for i := range links {
			link := links[i]
			records = append(records, &link)
			if visitedTags[link.TagID] {
				continue
			}
			visitedTags[link.TagID] = true

			var tag entity.Tag
			err := db.WithContext(ctx).Where("id = ?", link.TagID).Take(&tag).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
			}
			records = append(records, &tag)

			tagLinks, err := LinksForTag(db.WithContext(ctx), tag.ID)
			if err != nil {
				return nil, err
			}
			for j := range tagLinks {
				if !visitedPhotos[tagLinks[j].PhotoID] {
					queue = append(queue, tagLinks[j].PhotoID)
				}
			}
		}
	}
	return dedupeRecords(records), nil
}

func loadRecords(ctx context.Context, db *gorm.DB, kind entity.Kind, query string, args ...interface{}) ([]entity.Record, error) {
	scoped := db.WithContext(ctx).Where(query, args...)
	var records []entity.Record
	switch kind {
	case entity.KindPhoto:
		var rows []entity.Photo
		if err := scoped.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		for i := range rows {
			records = append(records, &rows[i])
		}
	case entity.KindThumbnail:
		var rows []entity.Thumbnail
		if err := scoped.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		for i := range rows {
			records = append(records, &rows[i])
		}
	case entity.KindPhotoData:
		var rows []entity.PhotoData
		if err := scoped.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		for i := range rows {
			records = append(records, &rows[i])
		}
	case entity.KindTag:
		var rows []entity.Tag
		if err := scoped.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		for i := range rows {
			records = append(records, &rows[i])
		}
	case entity.KindPhotoTag:
		var rows []entity.PhotoTag
		if err := scoped.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		for i := range rows {
			records = append(records, &rows[i])
		}
	case entity.KindRating:
		var rows []entity.Rating
		if err := scoped.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		for i := range rows {
			records = append(records, &rows[i])
		}
	default:
		return nil, fmt.Errorf("%w: %q", entity.ErrUnknownKind, kind)
	}
	return records, nil
}

func dedupeRecords(records []entity.Record) []entity.Record {
	seen := map[string]bool{}
	result := make([]entity.Record, 0, len(records))
	for _, record := range records {
		key := string(record.RecordKind()) + "/" + record.RecordIdentity()
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, record)
	}
	return result
}
