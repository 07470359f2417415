package settings

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/model"
)

// Settings is the business configuration: working hours, slot granularity,
// booking horizon and the service catalog. Loaded once at startup and treated
// as immutable afterwards.
type Settings struct {
	Location     *time.Location
	WeekdayOpen  int // minutes from midnight
	WeekdayClose int
	WeekendOpen  int
	WeekendClose int
	SlotStep     time.Duration
	DaysAhead    int
	Services     []model.Service
}

type fileSchema struct {
	Timezone string `yaml:"timezone"`
	Hours    struct {
		Weekday window `yaml:"weekday"`
		Weekend window `yaml:"weekend"`
	} `yaml:"hours"`
	SlotStepMinutes int `yaml:"slot_step_minutes"`
	DaysAhead       int `yaml:"days_ahead"`
	Services        []struct {
		Name            string `yaml:"name"`
		DurationMinutes int    `yaml:"duration_minutes"`
		Price           int    `yaml:"price"`
	} `yaml:"services"`
}

type window struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

func Load(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read business config: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Settings, error) {
	var f fileSchema
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse business config: %w", err)
	}

	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", f.Timezone, err)
	}
	if f.SlotStepMinutes <= 0 {
		return nil, fmt.Errorf("slot_step_minutes must be positive (got %d)", f.SlotStepMinutes)
	}
	if f.DaysAhead <= 0 {
		return nil, fmt.Errorf("days_ahead must be positive (got %d)", f.DaysAhead)
	}

	s := &Settings{
		Location:  loc,
		SlotStep:  time.Duration(f.SlotStepMinutes) * time.Minute,
		DaysAhead: f.DaysAhead,
	}
	if s.WeekdayOpen, err = parseClock(f.Hours.Weekday.Open); err != nil {
		return nil, err
	}
	if s.WeekdayClose, err = parseClock(f.Hours.Weekday.Close); err != nil {
		return nil, err
	}
	if s.WeekendOpen, err = parseClock(f.Hours.Weekend.Open); err != nil {
		return nil, err
	}
	if s.WeekendClose, err = parseClock(f.Hours.Weekend.Close); err != nil {
		return nil, err
	}

	if len(f.Services) == 0 {
		return nil, fmt.Errorf("at least one service is required")
	}
	seen := make(map[string]struct{}, len(f.Services))
	for _, svc := range f.Services {
		if svc.Name == "" {
			return nil, fmt.Errorf("service name must not be empty")
		}
		if _, dup := seen[svc.Name]; dup {
			return nil, fmt.Errorf("duplicate service %q", svc.Name)
		}
		seen[svc.Name] = struct{}{}
		if svc.DurationMinutes <= 0 {
			return nil, fmt.Errorf("service %q: duration must be positive", svc.Name)
		}
		if svc.Price < 0 {
			return nil, fmt.Errorf("service %q: price must not be negative", svc.Name)
		}
		s.Services = append(s.Services, model.Service{
			Name:     svc.Name,
			Duration: time.Duration(svc.DurationMinutes) * time.Minute,
			Price:    svc.Price,
		})
	}
	return s, nil
}

// ServiceByName looks a catalog entry up by its unique name.
func (s *Settings) ServiceByName(name string) (model.Service, bool) {
	for _, svc := range s.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return model.Service{}, false
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q (want HH:MM)", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}
