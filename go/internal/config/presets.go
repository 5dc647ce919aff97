package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/todoroom/go/internal/models"
	"github.com/mcdev12/todoroom/go/internal/room"
)

// Presets is the YAML room presets file
type Presets struct {
	Defaults room.Defaults `yaml:"defaults"`
	Rooms    []SeedRoom    `yaml:"rooms"`
}

type SeedRole struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// SeedRoom is a room the seed tool creates
type SeedRoom struct {
	Name         string              `yaml:"name"`
	Description  string              `yaml:"description"`
	PointCap     int                 `yaml:"point_cap"`
	MatchingType models.MatchingType `yaml:"matching_type"`
	Visibility   bool                `yaml:"visibility"`
	Password     string              `yaml:"password"`
	Roles        []SeedRole          `yaml:"roles"`
}

// Request turns the seed room into a create request; head count is the role count.
func (s SeedRoom) Request() room.CreateRoomRequest {
	req := room.CreateRoomRequest{
		Name:         s.Name,
		Description:  s.Description,
		HeadCount:    len(s.Roles),
		PointCap:     s.PointCap,
		MatchingType: s.MatchingType,
		Visibility:   s.Visibility,
		Password:     s.Password,
		Roles:        make([]room.RoleInput, len(s.Roles)),
	}
	for i, r := range s.Roles {
		req.Roles[i] = room.RoleInput{Name: r.Name, Description: r.Description}
	}
	return req
}

// LoadPresets reads a presets file. Fields the file leaves out keep the
// standard defaults; an empty path yields only the standard defaults.
func LoadPresets(path string) (*Presets, error) {
	presets := &Presets{Defaults: room.StandardDefaults()}
	if path == "" {
		return presets, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}
	if err := yaml.Unmarshal(data, presets); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}

	std := room.StandardDefaults()
	if presets.Defaults.PointCap == 0 {
		presets.Defaults.PointCap = std.PointCap
	}
	if presets.Defaults.MatchingType == "" {
		presets.Defaults.MatchingType = std.MatchingType
	}
	switch presets.Defaults.MatchingType {
	case models.MatchingTypeHighestFirst, models.MatchingTypeDeferredRatio:
	default:
		return nil, fmt.Errorf("unknown default matching_type %q", presets.Defaults.MatchingType)
	}
	return presets, nil
}
