package db

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tokenRowID is the primary key of the single token row.
const tokenRowID = 1

// Token is the persisted session: the credential pair plus the signed-in user.
type Token struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	User         string    `json:"user,omitempty"` // JSON-encoded identity record
	UpdatedAt    time.Time `json:"updated_at"`
}

// TokenRepository defines decoupled operations for token persistence.
type TokenRepository interface {
	Get(ctx context.Context) (*Token, error)
	Upsert(ctx context.Context, token *Token) error
	Clear(ctx context.Context) error
}

// ErrNotInitialized is returned by repositories built without a backing handle.
var ErrNotInitialized = errors.New("repository not initialized")

// gormTokenRepo is a GORM-backed implementation of TokenRepository.
// Use constructor NewTokenRepository to obtain an instance.
type gormTokenRepo struct{ db *gorm.DB }

// NewTokenRepository creates a TokenRepository. Accepts *gorm.DB to avoid global access.
func NewTokenRepository(db *gorm.DB) TokenRepository { return &gormTokenRepo{db: db} }

func (r *gormTokenRepo) Get(ctx context.Context) (*Token, error) {
	if r.db == nil {
		return nil, ErrNotInitialized
	}
	var token Token
	err := r.db.WithContext(ctx).First(&token, tokenRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *gormTokenRepo) Upsert(ctx context.Context, token *Token) error {
	if r.db == nil {
		return ErrNotInitialized
	}
	token.ID = tokenRowID
	token.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "user", "updated_at"}),
	}).Create(token).Error
}

func (r *gormTokenRepo) Clear(ctx context.Context) error {
	if r.db == nil {
		return ErrNotInitialized
	}
	return r.db.WithContext(ctx).Delete(&Token{}, tokenRowID).Error
}

// MemoryTokenRepository keeps the token in process memory only.
type MemoryTokenRepository struct {
	mu    sync.RWMutex
	token *Token
}

// NewMemoryTokenRepository returns an empty in-memory repository.
func NewMemoryTokenRepository() *MemoryTokenRepository { return &MemoryTokenRepository{} }

func (r *MemoryTokenRepository) Get(_ context.Context) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.token == nil {
		return nil, nil
	}
	cp := *r.token
	return &cp, nil
}

func (r *MemoryTokenRepository) Upsert(_ context.Context, token *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	cp.ID = tokenRowID
	cp.UpdatedAt = time.Now().UTC()
	r.token = &cp
	return nil
}

func (r *MemoryTokenRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = nil
	return nil
}
