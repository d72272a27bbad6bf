package storage

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "repaytrack/internal/errors"
	"repaytrack/internal/logger"
	"repaytrack/internal/models"
)

// SQLStore persists to a relational database through GORM. Both Postgres
// and SQLite are supported; the schema is owned by the database package.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.SugaredLogger

	closer func() error
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open and migrated database.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{
		db:  db,
		now: storageNow,
		log: logger.Named("storage.sql"),
	}
}

// CreateBudget implements Storer.
func (s *SQLStore) CreateBudget(ctx context.Context, input models.NewBudget) (*models.Budget, error) {
	budget := &models.Budget{
		Name:          input.Name,
		TotalAmount:   input.TotalAmount,
		MonthlyAmount: input.MonthlyAmount,
		StartDate:     input.StartDate,
		CreatedAt:     s.now(),
	}

	if err := s.db.WithContext(ctx).Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.log.Debugw("budget created", "budget_id", budget.ID)
	return budget, nil
}

// ListBudgets implements Storer.
func (s *SQLStore) ListBudgets(ctx context.Context) ([]models.Budget, error) {
	budgets := []models.Budget{}
	if err := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return budgets, nil
}

// GetBudget implements Storer.
func (s *SQLStore) GetBudget(ctx context.Context, id uint) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// DeleteBudget implements Storer. Payments are removed explicitly in the
// same transaction so the cascade does not depend on the driver enforcing
// foreign keys.
func (s *SQLStore) DeleteBudget(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("budget_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Budget{}).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.log.Debugw("budget deleted", "budget_id", id)
	return nil
}

// ListPayments implements Storer.
func (s *SQLStore) ListPayments(ctx context.Context, budgetID uint) ([]models.Payment, error) {
	payments := []models.Payment{}
	if err := s.db.WithContext(ctx).Where("budget_id = ?", budgetID).Order("month_index ASC").Find(&payments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return payments, nil
}

// TogglePayment implements Storer. The write is a single upsert on
// (budget_id, month_index) so concurrent first toggles of the same month
// cannot collide on the unique index.
func (s *SQLStore) TogglePayment(ctx context.Context, budgetID uint, monthIndex int, isPaid bool) (*models.Payment, error) {
	var payment models.Payment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.Payment{BudgetID: budgetID, MonthIndex: monthIndex, IsPaid: isPaid}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "budget_id"}, {Name: "month_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_paid"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Where("budget_id = ? AND month_index = ?", budgetID, monthIndex).First(&payment).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.log.Debugw("payment toggled", "budget_id", budgetID, "month_index", monthIndex, "is_paid", isPaid)
	return &payment, nil
}

// ListProfiles implements ProfileStorer.
func (s *SQLStore) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	profiles := []models.Profile{}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&profiles).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return profiles, nil
}

// GetProfile implements ProfileStorer.
func (s *SQLStore) GetProfile(ctx context.Context, id uint) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &profile, nil
}

// CreateProfile implements ProfileStorer.
func (s *SQLStore) CreateProfile(ctx context.Context, name, passwordHash string) (*models.Profile, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateProfile
	}

	profile := &models.Profile{Name: name, PasswordHash: passwordHash}
	if err := s.db.WithContext(ctx).Create(profile).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateProfile
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return profile, nil
}

// CurrentProfileID implements ProfileStorer.
func (s *SQLStore) CurrentProfileID(ctx context.Context) (*uint, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("is_current = ?", true).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &profile.ID, nil
}

// SetCurrentProfileID implements ProfileStorer.
func (s *SQLStore) SetCurrentProfileID(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Profile{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperrors.ErrProfileNotFound
		}
		if err := tx.Model(&models.Profile{}).Where("is_current = ?", true).Update("is_current", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.Profile{}).Where("id = ?", id).Update("is_current", true).Error
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ClearCurrentProfile implements ProfileStorer.
func (s *SQLStore) ClearCurrentProfile(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("is_current = ?", true).Update("is_current", false).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
