package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CachedPost is one entry of the locally cached feed window.
// Payload holds the post exactly as the client decoded it, re-encoded as JSON.
type CachedPost struct {
	ID       string    `gorm:"primaryKey" json:"id"`
	Position int       `gorm:"index" json:"position"`
	Payload  string    `json:"payload"`
	CachedAt time.Time `json:"cached_at"`
}

// PostRepository defines operations on the read-through post cache.
type PostRepository interface {
	ReplaceAll(ctx context.Context, posts []CachedPost) error
	List(ctx context.Context) ([]CachedPost, error)
	Get(ctx context.Context, id string) (*CachedPost, error)
	Put(ctx context.Context, post CachedPost) error
	Delete(ctx context.Context, id string) error
}

type gormPostRepo struct{ db *gorm.DB }

// NewPostRepository creates a GORM-backed PostRepository.
func NewPostRepository(db *gorm.DB) PostRepository { return &gormPostRepo{db: db} }

// ReplaceAll swaps the cached window for posts, keeping their slice order.
func (r *gormPostRepo) ReplaceAll(ctx context.Context, posts []CachedPost) error {
	if r.db == nil {
		return ErrNotInitialized
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&CachedPost{}).Error; err != nil {
			return err
		}
		if len(posts) == 0 {
			return nil
		}
		rows := make([]CachedPost, len(posts))
		for i, p := range posts {
			p.Position = i
			p.CachedAt = now
			rows[i] = p
		}
		return tx.Create(&rows).Error
	})
}

func (r *gormPostRepo) List(ctx context.Context) ([]CachedPost, error) {
	if r.db == nil {
		return nil, ErrNotInitialized
	}
	var posts []CachedPost
	if err := r.db.WithContext(ctx).Order("position asc").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *gormPostRepo) Get(ctx context.Context, id string) (*CachedPost, error) {
	if r.db == nil {
		return nil, ErrNotInitialized
	}
	var post CachedPost
	err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Put upserts a single post, keeping its position when it is already cached.
func (r *gormPostRepo) Put(ctx context.Context, post CachedPost) error {
	if r.db == nil {
		return ErrNotInitialized
	}
	post.CachedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "cached_at"}),
	}).Create(&post).Error
}

func (r *gormPostRepo) Delete(ctx context.Context, id string) error {
	if r.db == nil {
		return ErrNotInitialized
	}
	return r.db.WithContext(ctx).Delete(&CachedPost{}, "id = ?", id).Error
}
