package repository

import (
	"context"

	"gorm.io/gorm"
)

// TransactionalRepositories exposes repositories bound to a single transaction.
type TransactionalRepositories interface {
	Program() ProgramRepository
	Rubrics() RubricRepository
	Submissions() SubmissionRepository
	Evaluations() EvaluationRepository
	Notifications() NotificationRepository
	Activity() ActivityLogRepository
}

// TransactionScope runs a unit of work atomically.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// GormTransactionScope implements TransactionScope using GORM transactions.
// The transaction rolls back when fn returns an error and commits otherwise.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) Program() ProgramRepository {
	return NewProgramRepository(r.tx)
}

func (r *gormTransactionalRepositories) Rubrics() RubricRepository {
	return NewRubricRepository(r.tx)
}

func (r *gormTransactionalRepositories) Submissions() SubmissionRepository {
	return NewSubmissionRepository(r.tx)
}

func (r *gormTransactionalRepositories) Evaluations() EvaluationRepository {
	return NewEvaluationRepository(r.tx)
}

func (r *gormTransactionalRepositories) Notifications() NotificationRepository {
	return NewNotificationRepository(r.tx)
}

func (r *gormTransactionalRepositories) Activity() ActivityLogRepository {
	return NewActivityLogRepository(r.tx)
}

var _ TransactionScope = (*GormTransactionScope)(nil)
