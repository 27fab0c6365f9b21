package models

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// PlaylistKind is the discriminator of the playlist hierarchy. The ordinal is what the store persists.
type PlaylistKind int

const (
	KindSource PlaylistKind = iota
	KindHistory
	KindTarget
	KindTargetHistory
)

var kindNames = [...]string{"Source", "History", "Target", "TargetHistory"}

// PlaylistKinds lists every variant in discriminator order.
func PlaylistKinds() []PlaylistKind {
	return []PlaylistKind{KindSource, KindHistory, KindTarget, KindTargetHistory}
}

// ParsePlaylistKind maps a variant name, in any case, to its kind.
func ParsePlaylistKind(s string) (PlaylistKind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return PlaylistKind(i), nil
		}
	}
	return 0, Violation("Playlist", "Kind", fmt.Sprintf("unknown playlist kind %q", s))
}

func (k PlaylistKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("PlaylistKind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the four known variants.
func (k PlaylistKind) Valid() bool {
	return k >= KindSource && k <= KindTargetHistory
}

// IsTarget reports whether playlists of this kind are written to and so carry Overwrite.
func (k PlaylistKind) IsTarget() bool {
	return k == KindTarget || k == KindTargetHistory
}

// IsHistory reports whether playlists of this kind mark tracks to exclude.
func (k PlaylistKind) IsHistory() bool {
	return k == KindHistory || k == KindTargetHistory
}

// Playlist is a single tagged record for every playlist variant.
//
// Overwrite only means something for target kinds and must be nil otherwise.
// A disabled playlist is skipped by sync but kept.
type Playlist struct {
	ID        int64
	Kind      PlaylistKind
	URL       string
	Name      string
	Disabled  bool
	PresetID  int64
	Overwrite *bool
}

// NewPlaylist builds a playlist attached to presetID. Target kinds start in append mode.
func NewPlaylist(kind PlaylistKind, presetID int64, url, name string) (*Playlist, error) {
	p := &Playlist{Kind: kind, PresetID: presetID, URL: strings.TrimSpace(url), Name: name}
	if kind.IsTarget() {
		overwrite := false
		p.Overwrite = &overwrite
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ShouldOverwrite reports whether a sync replaces the playlist contents instead of appending.
func (p *Playlist) ShouldOverwrite() bool {
	return p.Kind.IsTarget() && p.Overwrite != nil && *p.Overwrite
}

func (p *Playlist) Validate() error {
	var result *multierror.Error
	if !p.Kind.Valid() {
		result = multierror.Append(result, Violation("Playlist", "Kind", fmt.Sprintf("unknown playlist kind %d", int(p.Kind))))
	}
	if p.PresetID <= 0 {
		result = multierror.Append(result, Violation("Playlist", "PresetID", "is required"))
	}
	if p.URL == "" {
		result = multierror.Append(result, Violation("Playlist", "URL", "is required"))
	}
	if p.Overwrite != nil && p.Kind.Valid() && !p.Kind.IsTarget() {
		result = multierror.Append(result, Violation("Playlist", "Overwrite", "is only defined for target playlists"))
	}
	return result.ErrorOrNil()
}
