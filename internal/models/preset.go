package models

import (
	"strings"

	"github.com/hashicorp/go-multierror"
)

const (
	// DefaultPlaylistSize is the number of tracks a sync pass considers when a preset does not say otherwise.
	DefaultPlaylistSize = 20
	// DefaultPresetName names the preset created for users that predate presets.
	DefaultPresetName = "Default"
)

// Settings is an owned value: it has no identity and is stored in its owner's row.
//
// IncludeLikedTracks is tri-state; nil means inherit the default behavior.
type Settings struct {
	IncludeLikedTracks     *bool
	PlaylistSize           int
	RecommendationsEnabled bool
}

// DefaultSettings returns the settings a new preset starts with.
func DefaultSettings() Settings {
	return Settings{PlaylistSize: DefaultPlaylistSize}
}

// IsZero reports whether s was never filled in.
func (s Settings) IsZero() bool {
	return s.IncludeLikedTracks == nil && s.PlaylistSize == 0 && !s.RecommendationsEnabled
}

func (s Settings) Validate() error {
	if s.PlaylistSize <= 0 {
		return Violation("Settings", "PlaylistSize", "must be positive")
	}
	return nil
}

// Preset is a named configuration bundle owned by a [User].
type Preset struct {
	ID       int64
	Name     string
	UserID   int64
	Settings Settings
}

// NewPreset builds a preset owned by userID. Zero settings are replaced with [DefaultSettings].
func NewPreset(userID int64, name string, settings Settings) (*Preset, error) {
	if settings.IsZero() {
		settings = DefaultSettings()
	}
	p := &Preset{Name: strings.TrimSpace(name), UserID: userID, Settings: settings}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Preset) Validate() error {
	var result *multierror.Error
	if p.UserID <= 0 {
		result = multierror.Append(result, Violation("Preset", "UserID", "is required"))
	}
	if strings.TrimSpace(p.Name) == "" {
		result = multierror.Append(result, Violation("Preset", "Name", "is required"))
	}
	if err := p.Settings.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
