package model

import (
	"fmt"
	"net/url"
	"strconv"
)

type SettingKey string

const (
	SettingKeyProxyURL           SettingKey = "proxy_url"             // outbound proxy for upstream calls, empty = direct
	SettingKeyUsageLogKeepPeriod SettingKey = "usage_log_keep_period" // days, 0 = keep forever (billing ledger)
	SettingKeyAuditLogKeepPeriod SettingKey = "audit_log_keep_period" // days
	SettingKeyImageStoreEnabled  SettingKey = "image_store_enabled"   // archive analyzed images to object storage
	SettingKeyCORSAllowOrigins   SettingKey = "cors_allow_origins"    // comma separated patterns, empty = no cross origin, "*" = all
)

type Setting struct {
	Key   SettingKey `json:"key" gorm:"primaryKey"`
	Value string     `json:"value" gorm:"not null"`
}

func DefaultSettings() []Setting {
	return []Setting{
		{Key: SettingKeyProxyURL, Value: ""},
		{Key: SettingKeyUsageLogKeepPeriod, Value: "0"},
		{Key: SettingKeyAuditLogKeepPeriod, Value: "180"},
		{Key: SettingKeyImageStoreEnabled, Value: "false"},
		{Key: SettingKeyCORSAllowOrigins, Value: ""},
	}
}

func (s *Setting) Validate() error {
	switch s.Key {
	case SettingKeyUsageLogKeepPeriod, SettingKeyAuditLogKeepPeriod:
		if _, err := strconv.Atoi(s.Value); err != nil {
			return fmt.Errorf("%s must be an integer", s.Key)
		}
		return nil
	case SettingKeyImageStoreEnabled:
		if s.Value != "true" && s.Value != "false" {
			return fmt.Errorf("%s must be true or false", s.Key)
		}
		return nil
	case SettingKeyProxyURL:
		if s.Value == "" {
			return nil
		}
		parsedURL, err := url.Parse(s.Value)
		if err != nil {
			return fmt.Errorf("proxy URL is invalid: %w", err)
		}
		validSchemes := map[string]bool{
			"http":  true,
			"https": true,
			"socks": true,
		}
		if !validSchemes[parsedURL.Scheme] {
			return fmt.Errorf("proxy URL scheme must be http, https, or socks")
		}
		if parsedURL.Host == "" {
			return fmt.Errorf("proxy URL must have a host")
		}
		return nil
	}

	return nil
}
