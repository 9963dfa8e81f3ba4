package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

type settingStore interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
}

// SettingService exposes runtime-tunable scheduler settings.
type SettingService struct {
	repo               settingStore
	defaultMaxWorkload int
	validator          *validator.Validate
	logger             *zap.Logger
}

// NewSettingService constructs the service. defaultMaxWorkload applies until a value is stored.
func NewSettingService(repo settingStore, defaultMaxWorkload int, validate *validator.Validate, logger *zap.Logger) *SettingService {
	if defaultMaxWorkload < 1 {
		defaultMaxWorkload = 5
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingService{repo: repo, defaultMaxWorkload: defaultMaxWorkload, validator: validate, logger: logger}
}

// MaxWorkload returns the effective workload cap.
func (s *SettingService) MaxWorkload(ctx context.Context) (int, error) {
	setting, err := s.MaxWorkloadSetting(ctx)
	if err != nil {
		return 0, err
	}
	return setting.Value, nil
}

// MaxWorkloadSetting returns the effective cap with its audit fields. Default reports an unset
// or unreadable stored value.
func (s *SettingService) MaxWorkloadSetting(ctx context.Context) (*dto.MaxWorkloadSetting, error) {
	stored, err := s.repo.Get(ctx, models.SettingKeyMaxWorkload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.MaxWorkloadSetting{Value: s.defaultMaxWorkload, Default: true}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load max workload")
	}
	value, err := strconv.Atoi(stored.Value)
	if err != nil || value < 1 {
		s.logger.Warn("stored max workload is invalid, using default", zap.String("value", stored.Value))
		return &dto.MaxWorkloadSetting{Value: s.defaultMaxWorkload, Default: true}, nil
	}
	return toMaxWorkloadSetting(stored, value), nil
}

// SetMaxWorkload stores a new workload cap. It applies to later allocation saves only.
func (s *SettingService) SetMaxWorkload(ctx context.Context, req dto.MaxWorkloadSetting, actor string) (*dto.MaxWorkloadSetting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err, "invalid max workload")
	}
	setting := &models.Setting{
		Key:         models.SettingKeyMaxWorkload,
		Value:       strconv.Itoa(req.Value),
		Type:        models.SettingTypeInteger,
		Description: "maximum allocations per lecturer",
	}
	if actor != "" {
		setting.UpdatedBy = &actor
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store max workload")
	}
	s.logger.Info("max workload updated", zap.Int("value", req.Value), zap.String("actor", actor))
	return toMaxWorkloadSetting(setting, req.Value), nil
}

func toMaxWorkloadSetting(setting *models.Setting, value int) *dto.MaxWorkloadSetting {
	out := &dto.MaxWorkloadSetting{Value: value}
	if setting.UpdatedBy != nil {
		out.UpdatedBy = *setting.UpdatedBy
	}
	if !setting.UpdatedAt.IsZero() {
		updatedAt := setting.UpdatedAt
		out.UpdatedAt = &updatedAt
	}
	return out
}
