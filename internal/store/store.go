package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"turnero-desk/internal/model"
)

// Store defines the interface for the desk's local state.
type Store interface {
	LoadSession(ctx context.Context) (model.Session, error)
	SaveSession(ctx context.Context, s model.Session) error
	ClearSession(ctx context.Context) error

	UpsertSubscription(ctx context.Context, sub model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	SubscriptionsForFloor(ctx context.Context, piso int) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// LoadSession returns the saved session or ErrNoSession.
func (s *gormStore) LoadSession(ctx context.Context) (model.Session, error) {
	var sess model.Session
	err := s.db.WithContext(ctx).First(&sess, model.SessionRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Session{}, ErrNoSession
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// SaveSession replaces the saved session.
func (s *gormStore) SaveSession(ctx context.Context, sess model.Session) error {
	sess.ID = model.SessionRowID
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "role", "token", "cookie", "push_token", "platform", "updated_at"}),
	}).Create(&sess).Error
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ClearSession forgets the saved session. Clearing twice is not an error.
func (s *gormStore) ClearSession(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Delete(&model.Session{}, model.SessionRowID).Error; err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// UpsertSubscription saves a browser push subscription, moving it to a new
// floor if the endpoint is already known.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "piso"}),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// GetSubscription returns the subscription for endpoint.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PushSubscription{}, ErrSubscriptionNotFound
	}
	if err != nil {
		return model.PushSubscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// SubscriptionsForFloor returns every subscription watching piso.
func (s *gormStore) SubscriptionsForFloor(ctx context.Context, piso int) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("piso = ?", piso).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions for floor %d: %w", piso, err)
	}
	return subs, nil
}

// DeleteSubscription removes the subscription for endpoint.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	res := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{})
	if res.Error != nil {
		return fmt.Errorf("delete subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
