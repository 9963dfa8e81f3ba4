package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

type settingStoreStub struct {
	stored *models.Setting
	err    error
}

func (s *settingStoreStub) Get(ctx context.Context, key string) (*models.Setting, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.stored == nil || s.stored.Key != key {
		return nil, sql.ErrNoRows
	}
	found := *s.stored
	return &found, nil
}

func (s *settingStoreStub) Upsert(ctx context.Context, cfg *models.Setting) error {
	if s.err != nil {
		return s.err
	}
	stored := *cfg
	stored.UpdatedAt = monday
	s.stored = &stored
	cfg.UpdatedAt = monday
	return nil
}

func TestSettingServiceMaxWorkloadFallsBackToDefault(t *testing.T) {
	svc := NewSettingService(&settingStoreStub{}, 4, nil, nil)

	value, err := svc.MaxWorkload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, value)

	setting, err := svc.MaxWorkloadSetting(context.Background())
	require.NoError(t, err)
	assert.True(t, setting.Default)
	assert.Nil(t, setting.UpdatedAt)
}

func TestSettingServiceSetThenRead(t *testing.T) {
	store := &settingStoreStub{}
	svc := NewSettingService(store, 4, nil, nil)

	saved, err := svc.SetMaxWorkload(context.Background(), dto.MaxWorkloadSetting{Value: 7}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 7, saved.Value)
	assert.Equal(t, "admin-1", saved.UpdatedBy)
	require.NotNil(t, saved.UpdatedAt)
	assert.Equal(t, monday, *saved.UpdatedAt)
	require.NotNil(t, store.stored.UpdatedBy)
	assert.Equal(t, "admin-1", *store.stored.UpdatedBy)
	assert.Equal(t, models.SettingTypeInteger, store.stored.Type)

	value, err := svc.MaxWorkload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, value)
}

func TestSettingServiceRejectsNonPositiveCap(t *testing.T) {
	svc := NewSettingService(&settingStoreStub{}, 4, nil, nil)

	_, err := svc.SetMaxWorkload(context.Background(), dto.MaxWorkloadSetting{Value: 0}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSettingServiceIgnoresCorruptValue(t *testing.T) {
	store := &settingStoreStub{stored: &models.Setting{Key: models.SettingKeyMaxWorkload, Value: "lots"}}
	svc := NewSettingService(store, 3, nil, nil)

	value, err := svc.MaxWorkload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, value)
}

func TestSettingServiceWrapsStoreFailure(t *testing.T) {
	svc := NewSettingService(&settingStoreStub{err: errors.New("db down")}, 3, nil, nil)

	_, err := svc.MaxWorkload(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
