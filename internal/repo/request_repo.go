// Package repo implements the data persistence layer for the weather request
// entity, backed by GORM. This file provides repository functions for the
// WeatherRequest model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a request is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.RequestService) which enforces validation and coordinates
// the location resolver and weather fetcher.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-weather-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateRequest inserts a new WeatherRequest row. CreatedAt is set to UTC
// when unset so the creation timestamp is immutable and driver-independent.
//
// On success, rec carries the assigned primary key. On failure, it returns
// a DB error.
func CreateRequest(ctx context.Context, db *gorm.DB, rec *domain.WeatherRequest) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Provider == "" {
		rec.Provider = domain.DefaultProvider
	}
	return db.WithContext(ctx).Create(rec).Error
}

// ListRequests returns up to limit requests ordered by id descending
// (most recently created first). It returns an empty slice when the table
// is empty. On DB error, it returns the error.
func ListRequests(ctx context.Context, db *gorm.DB, limit int) ([]domain.WeatherRequest, error) {
	var out []domain.WeatherRequest
	err := db.WithContext(ctx).
		Order("id desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListRequestsAsc returns every request ordered by id ascending (oldest
// first). Exports enumerate records in this order regardless of the default
// descending list order.
func ListRequestsAsc(ctx context.Context, db *gorm.DB) ([]domain.WeatherRequest, error) {
	var out []domain.WeatherRequest
	err := db.WithContext(ctx).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// GetRequest fetches a single request by id. If the record does not exist,
// it returns ErrNotFound. On other DB errors, the raw error is returned.
func GetRequest(ctx context.Context, db *gorm.DB, id uint) (*domain.WeatherRequest, error) {
	var rec domain.WeatherRequest
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveRequest persists all fields of an existing record (full overwrite,
// last write wins). The record must carry a primary key.
func SaveRequest(ctx context.Context, db *gorm.DB, rec *domain.WeatherRequest) error {
	return db.WithContext(ctx).Save(rec).Error
}

// DeleteRequest removes a request by id. If no rows are affected (record
// missing), it returns ErrNotFound. On DB error, the raw error is returned.
func DeleteRequest(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.WeatherRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
