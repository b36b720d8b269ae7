package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"guest-intake/models"
)

const mysqlDuplicateEntry = 1062

var (
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrDuplicateReference   = errors.New("registration reference already exists")
)

type GuestService struct {
	DB     *gorm.DB
	logger *zap.Logger
}

func NewGuestService(db *gorm.DB, logger *zap.Logger) *GuestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuestService{DB: db, logger: logger}
}

// Register stores a registration and its guests in one transaction. A
// reference code is generated when the registration has none.
func (s *GuestService) Register(ctx context.Context, reg *models.Registration) error {
	if reg.ReferenceCode == "" {
		reg.ReferenceCode = uuid.NewString()
	}
	guests := reg.Guests

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(reg).Error; err != nil {
			return fmt.Errorf("create registration: %w", err)
		}
		if len(guests) == 0 {
			return nil
		}
		for i := range guests {
			guests[i].RegistrationID = reg.ID
		}
		if err := tx.Create(&guests).Error; err != nil {
			return fmt.Errorf("create guests: %w", err)
		}
		return nil
	})
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return ErrDuplicateReference
		}
		s.logger.Error("registration not stored", zap.Error(err))
		return err
	}

	reg.Guests = guests
	s.logger.Info("registration stored",
		zap.Uint("registration_id", reg.ID),
		zap.String("reference", reg.ReferenceCode),
		zap.Int("guests", len(guests)))
	return nil
}

// ListByRegistration returns the registration's guests, primary guest
// first, then adults and children in submission order.
func (s *GuestService) ListByRegistration(ctx context.Context, registrationID uint) ([]models.Guest, error) {
	db := s.DB.WithContext(ctx)

	var reg models.Registration
	if err := db.Select("id").First(&reg, registrationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}

	var guests []models.Guest
	err := db.
		Where("registration_id = ?", registrationID).
		Order("is_main_guest DESC, guest_type ASC, position ASC, id ASC").
		Find(&guests).Error
	if err != nil {
		s.logger.Error("list guests failed", zap.Uint("registration_id", registrationID), zap.Error(err))
		return nil, err
	}
	return guests, nil
}
