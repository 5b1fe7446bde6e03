package store

import (
	"strings"

	"hypolab/internal/domain"
)

var themes = []string{"light", "dark", "system"}

type SettingsPatch struct {
	CompanyName          *string
	DefaultPriority      *string
	NotificationsEnabled *bool
	EmailNotifications   *bool
	Theme                *string
	Language             *string
}

func defaultSettings() domain.Settings {
	return domain.Settings{
		CompanyName:          "AI Lab",
		DefaultPriority:      DefaultPriority,
		NotificationsEnabled: true,
		EmailNotifications:   false,
		Theme:                "system",
		Language:             "en",
	}
}

func (s *Store) Settings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Store) UpdateSettings(patch SettingsPatch) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.settings
	if patch.CompanyName != nil {
		if strings.TrimSpace(*patch.CompanyName) == "" {
			return domain.Settings{}, invalid("companyName", "Company name cannot be empty")
		}
		next.CompanyName = strings.TrimSpace(*patch.CompanyName)
	}
	if patch.DefaultPriority != nil {
		if !oneOf(*patch.DefaultPriority, priorities) {
			return domain.Settings{}, invalid("defaultPriority", "Invalid priority %q", *patch.DefaultPriority)
		}
		next.DefaultPriority = *patch.DefaultPriority
	}
	if patch.NotificationsEnabled != nil {
		next.NotificationsEnabled = *patch.NotificationsEnabled
	}
	if patch.EmailNotifications != nil {
		next.EmailNotifications = *patch.EmailNotifications
	}
	if patch.Theme != nil {
		if !oneOf(*patch.Theme, themes) {
			return domain.Settings{}, invalid("theme", "Invalid theme %q", *patch.Theme)
		}
		next.Theme = *patch.Theme
	}
	if patch.Language != nil {
		next.Language = *patch.Language
	}
	next.UpdatedAt = s.now()
	s.settings = next
	return next, nil
}
