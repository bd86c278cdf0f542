package op

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bestruirui/sprout/internal/db"
	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/utils/cache"
)

var settingCache = cache.New[model.SettingKey, string](16)

func SettingList(ctx context.Context) ([]model.Setting, error) {
	settings := make([]model.Setting, 0, settingCache.Len())
	for key, value := range settingCache.GetAll() {
		settings = append(settings, model.Setting{
			Key:   key,
			Value: value,
		})
	}
	return settings, nil
}

func SettingGetString(key model.SettingKey) (string, error) {
	value, ok := settingCache.Get(key)
	if !ok {
		return "", fmt.Errorf("setting not found")
	}
	return value, nil
}

func SettingGetInt(key model.SettingKey) (int, error) {
	value, ok := settingCache.Get(key)
	if !ok {
		return 0, fmt.Errorf("setting not found")
	}
	return strconv.Atoi(value)
}

func SettingGetBool(key model.SettingKey) (bool, error) {
	value, ok := settingCache.Get(key)
	if !ok {
		return false, fmt.Errorf("setting not found")
	}
	return strconv.ParseBool(value)
}

func SettingSetString(key model.SettingKey, value string) error {
	cached, ok := settingCache.Get(key)
	if !ok {
		return fmt.Errorf("setting not found")
	}
	if cached == value {
		return nil
	}
	setting := model.Setting{Key: key, Value: value}
	if err := setting.Validate(); err != nil {
		return err
	}
	result := db.GetDB().Model(&model.Setting{Key: key}).Update("Value", value)
	if result.Error != nil {
		return fmt.Errorf("failed to set setting: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to set setting, key not found")
	}
	settingCache.Set(key, value)
	return nil
}

// settingRefreshCache loads all settings, seeding defaults for keys added
// since the database was created.
func settingRefreshCache(ctx context.Context) error {
	d := db.GetDB().WithContext(ctx)

	var settings []model.Setting
	if err := d.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	existingKeys := make(map[model.SettingKey]bool)
	for _, setting := range settings {
		existingKeys[setting.Key] = true
	}

	missing := make([]model.Setting, 0)
	for _, def := range model.DefaultSettings() {
		if !existingKeys[def.Key] {
			missing = append(missing, def)
		}
	}

	if len(missing) > 0 {
		if err := d.CreateInBatches(missing, len(missing)).Error; err != nil {
			return fmt.Errorf("failed to create missing settings: %w", err)
		}
		settings = append(settings, missing...)
	}
	for _, setting := range settings {
		settingCache.Set(setting.Key, setting.Value)
	}
	return nil
}
