package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"clipflow/internal/domain"
)

// ScheduleConfig models schedule.json: the per-platform weekly posting
// calendar. Immutable once loaded; see cache.go for the process-wide cache.
type ScheduleConfig struct {
	Timezone        string                                 `json:"timezone"`
	DefaultClipType domain.ClipType                        `json:"defaultClipType,omitempty"`
	Accounts        map[string]string                      `json:"accounts,omitempty"`
	Platforms       map[string]map[string]PlatformSchedule `json:"platforms"`
}

// PlatformSchedule holds the recurring weekly slots for one (platform, clip
// type) pair. A slot recurs on each listed day unless that day is avoided.
type PlatformSchedule struct {
	Slots     []Slot    `json:"slots"`
	AvoidDays []Weekday `json:"avoidDays,omitempty"`
}

// Slot is a recurring publishable instant: a local time of day plus the set
// of weekdays it fires on.
type Slot struct {
	Time string    `json:"time"`
	Days []Weekday `json:"days"`
}

var slotTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// CanonicalPlatform maps a remote platform name to its schedule config key.
func CanonicalPlatform(name string) string {
	p := strings.ToLower(strings.TrimSpace(name))
	if p == "twitter" {
		return "x"
	}
	return p
}

// Location resolves the configured IANA timezone.
func (c *ScheduleConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ScheduleFor returns the slot schedule for a platform and clip type, applying
// platform aliasing. ok is false when no schedule is configured.
func (c *ScheduleConfig) ScheduleFor(platform string, clipType domain.ClipType) (PlatformSchedule, bool) {
	byClip, ok := c.Platforms[CanonicalPlatform(platform)]
	if !ok {
		return PlatformSchedule{}, false
	}
	ps, ok := byClip[string(clipType)]
	if !ok || len(ps.Slots) == 0 {
		return PlatformSchedule{}, false
	}
	return ps, true
}

// DefaultAccount returns the configured default account id for a platform.
func (c *ScheduleConfig) DefaultAccount(platform string) string {
	return c.Accounts[CanonicalPlatform(platform)]
}

// Default clip type for posts the resolver cannot match.
func (c *ScheduleConfig) Fallback() domain.ClipType {
	if c.DefaultClipType != "" {
		return c.DefaultClipType
	}
	return domain.ClipShort
}

// Validate ensures the config meets required structure.
func (c *ScheduleConfig) Validate() error {
	if c.Timezone == "" {
		return fmt.Errorf("schedule.timezone is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	if c.DefaultClipType != "" && !domain.ValidClipType(string(c.DefaultClipType)) {
		return fmt.Errorf("defaultClipType %q is not a clip type", c.DefaultClipType)
	}
	if len(c.Platforms) == 0 {
		return fmt.Errorf("schedule.platforms is required")
	}
	for platform, byClip := range c.Platforms {
		if platform == "" {
			return fmt.Errorf("schedule.platforms contains empty platform key")
		}
		for clipType, ps := range byClip {
			if !domain.ValidClipType(clipType) {
				return fmt.Errorf("platform %s: %q is not a clip type", platform, clipType)
			}
			for i, slot := range ps.Slots {
				if !slotTimeRe.MatchString(slot.Time) {
					return fmt.Errorf("platform %s/%s slot %d: time %q is not HH:MM", platform, clipType, i, slot.Time)
				}
				if len(slot.Days) == 0 {
					return fmt.Errorf("platform %s/%s slot %d: days is required", platform, clipType, i)
				}
			}
		}
	}
	return nil
}

// Path returns the schedule config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "schedule.json")
}

// FromJSON parses and validates schedule config from raw JSON bytes.
func FromJSON(data []byte) (*ScheduleConfig, error) {
	var cfg ScheduleConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid schedule json: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads schedule config from the given path.
func FromFile(path string) (*ScheduleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("schedule config %s not found; create it with clipflow schedule init", path)
		}
		return nil, err
	}
	return FromJSON(data)
}

// GenerateDefault returns default schedule config JSON for a timezone.
func GenerateDefault(timezone string) string {
	if timezone == "" {
		timezone = "UTC"
	}
	return fmt.Sprintf(defaultTemplate, timezone)
}

// Default returns the parsed default schedule config.
func Default(timezone string) *ScheduleConfig {
	cfg, _ := FromJSON([]byte(GenerateDefault(timezone)))
	return cfg
}

const defaultTemplate = `{
  "timezone": "%s",
  "defaultClipType": "short",
  "accounts": {},
  "platforms": {
    "x": {
      "short": {
        "slots": [
          {"time": "09:00", "days": ["mon", "wed", "fri"]},
          {"time": "15:00", "days": ["mon", "wed", "fri"]}
        ],
        "avoidDays": []
      }
    },
    "tiktok": {
      "short": {
        "slots": [
          {"time": "12:00", "days": ["tue", "thu", "sat"]}
        ],
        "avoidDays": ["sun"]
      }
    },
    "youtube": {
      "video": {
        "slots": [
          {"time": "17:00", "days": ["sat"]}
        ],
        "avoidDays": []
      },
      "medium-clip": {
        "slots": [
          {"time": "18:00", "days": ["tue", "fri"]}
        ],
        "avoidDays": []
      }
    }
  }
}
`
