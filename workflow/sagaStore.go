package workflow

import (
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/billing_backend/models"
)

// SagaStore persists idempotency keys and the split saga log. Keeping it
// behind an interface lets the coordinator run against an in-memory store
// in tests, without MySQL.
type SagaStore interface {
	// BeginIdempotency inserts STARTED. If SUCCEEDED exists, returns
	// (true, nil) meaning "skip safely".
	BeginIdempotency(handlerName, requestKey string) (skip bool, err error)
	MarkIdempotencySucceeded(handlerName, requestKey string) error
	MarkIdempotencyFailed(handlerName, requestKey string, cause error) error

	CreateSaga(saga *models.SplitSaga) error
	UpdateSaga(saga *models.SplitSaga) error
	FindSagaByRequestKey(requestKey string) (*models.SplitSaga, error)
	RecordStep(step *models.SplitSagaStep) error
	MarkStepCompensated(stepId int) error
	StepsForSaga(sagaId int) ([]models.SplitSagaStep, error)
}

type gormSagaStore struct {
	db *gorm.DB
}

func NewGormSagaStore(db *gorm.DB) SagaStore {
	return &gormSagaStore{db: db}
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func (s *gormSagaStore) BeginIdempotency(handlerName, requestKey string) (skip bool, err error) {
	key := models.IdempotencyKey{
		HandlerName: handlerName,
		RequestKey:  requestKey,
		Status:      models.IdempotencyStatusStarted,
	}
	if err := s.db.Create(&key).Error; err == nil {
		return false, nil
	} else if !isDuplicateKeyErr(err) {
		return false, err
	}

	var existing models.IdempotencyKey
	if err := s.db.Where("handler_name = ? AND request_key = ?", handlerName, requestKey).
		First(&existing).Error; err != nil {
		return false, err
	}

	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return true, nil
	case models.IdempotencyStatusStarted:
		// If another instance is currently processing, ask the caller to
		// retry. If the row is stale, reuse it (set STARTED again).
		if time.Since(existing.UpdatedAt) < 5*time.Minute {
			return false, ErrIdempotencyInProgress
		}
		return false, s.resetIdempotency(existing.ID)
	default:
		return false, s.resetIdempotency(existing.ID)
	}
}

func (s *gormSagaStore) resetIdempotency(id int) error {
	return s.db.Model(&models.IdempotencyKey{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
}

func (s *gormSagaStore) MarkIdempotencySucceeded(handlerName, requestKey string) error {
	return s.db.Model(&models.IdempotencyKey{}).
		Where("handler_name = ? AND request_key = ?", handlerName, requestKey).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusSucceeded, "last_error": nil}).Error
}

func (s *gormSagaStore) MarkIdempotencyFailed(handlerName, requestKey string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.db.Model(&models.IdempotencyKey{}).
		Where("handler_name = ? AND request_key = ?", handlerName, requestKey).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusFailed, "last_error": &msg}).Error
}

func (s *gormSagaStore) CreateSaga(saga *models.SplitSaga) error {
	return s.db.Create(saga).Error
}

func (s *gormSagaStore) UpdateSaga(saga *models.SplitSaga) error {
	return s.db.Save(saga).Error
}

func (s *gormSagaStore) FindSagaByRequestKey(requestKey string) (*models.SplitSaga, error) {
	var saga models.SplitSaga
	err := s.db.Where("request_key = ?", requestKey).First(&saga).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &saga, nil
}

func (s *gormSagaStore) RecordStep(step *models.SplitSagaStep) error {
	return s.db.Create(step).Error
}

func (s *gormSagaStore) MarkStepCompensated(stepId int) error {
	return s.db.Model(&models.SplitSagaStep{}).
		Where("id = ?", stepId).
		Update("compensated", true).Error
}

func (s *gormSagaStore) StepsForSaga(sagaId int) ([]models.SplitSagaStep, error) {
	var steps []models.SplitSagaStep
	err := s.db.Where("saga_id = ?", sagaId).Order("id asc").Find(&steps).Error
	return steps, err
}
