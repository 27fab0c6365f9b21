package models

import (
	"errors"
	"strings"
	"testing"
)

func TestPlaylistKind(t *testing.T) {
	t.Run("ParsePlaylistKind", func(t *testing.T) {
		tc := []struct {
			input string
			want  PlaylistKind
		}{
			{input: "Source", want: KindSource},
			{input: "history", want: KindHistory},
			{input: " TARGET ", want: KindTarget},
			{input: "TargetHistory", want: KindTargetHistory},
		}

		for _, tt := range tc {
			got, err := ParsePlaylistKind(tt.input)
			if err != nil {
				t.Fatalf("ParsePlaylistKind(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParsePlaylistKind(%q) = %v, want %v", tt.input, got, tt.want)
			}
		}

		if _, err := ParsePlaylistKind("Mixtape"); !errors.Is(err, ErrModelViolation) {
			t.Errorf("expected ErrModelViolation for unknown kind, got %v", err)
		}
	})

	t.Run("Predicates", func(t *testing.T) {
		if KindSource.IsTarget() || KindHistory.IsTarget() {
			t.Error("source and history kinds are not targets")
		}
		if !KindTarget.IsTarget() || !KindTargetHistory.IsTarget() {
			t.Error("target kinds should report IsTarget")
		}
		if !KindHistory.IsHistory() || !KindTargetHistory.IsHistory() || KindTarget.IsHistory() {
			t.Error("IsHistory mismatch")
		}
		if PlaylistKind(4).Valid() || PlaylistKind(-1).Valid() {
			t.Error("out of range kinds should be invalid")
		}
		if PlaylistKind(9).String() != "PlaylistKind(9)" {
			t.Errorf("unexpected string for invalid kind: %s", PlaylistKind(9))
		}
	})
}

func TestPlaylist(t *testing.T) {
	t.Run("NewPlaylist target defaults to append", func(t *testing.T) {
		p, err := NewPlaylist(KindTarget, 10, "https://open.spotify.com/playlist/abc", "Weekly")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Overwrite == nil || *p.Overwrite {
			t.Errorf("expected Overwrite=false for new target, got %v", p.Overwrite)
		}
		if p.ShouldOverwrite() {
			t.Error("new target should append")
		}
	})

	t.Run("NewPlaylist source has no overwrite", func(t *testing.T) {
		p, err := NewPlaylist(KindSource, 10, "https://open.spotify.com/playlist/abc", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Overwrite != nil {
			t.Error("source playlist should not carry Overwrite")
		}
	})

	t.Run("Unknown kind", func(t *testing.T) {
		_, err := NewPlaylist(PlaylistKind(7), 10, "url", "")
		if !errors.Is(err, ErrModelViolation) {
			t.Errorf("expected ErrModelViolation, got %v", err)
		}
	})

	t.Run("Missing owner", func(t *testing.T) {
		_, err := NewPlaylist(KindSource, 0, "url", "")
		var violation *ViolationError
		if !errors.As(err, &violation) {
			t.Fatalf("expected ViolationError, got %v", err)
		}
		if violation.Field != "PresetID" {
			t.Errorf("expected PresetID violation, got %s", violation.Field)
		}
	})

	t.Run("Overwrite on history kind", func(t *testing.T) {
		overwrite := true
		p := &Playlist{Kind: KindHistory, PresetID: 1, URL: "url", Overwrite: &overwrite}
		if err := p.Validate(); !errors.Is(err, ErrModelViolation) {
			t.Errorf("expected ErrModelViolation, got %v", err)
		}
	})
}

func TestPreset(t *testing.T) {
	t.Run("NewPreset applies defaults", func(t *testing.T) {
		p, err := NewPreset(1, "  Evening  ", Settings{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Name != "Evening" {
			t.Errorf("expected trimmed name, got %q", p.Name)
		}
		if p.Settings.PlaylistSize != DefaultPlaylistSize || p.Settings.RecommendationsEnabled || p.Settings.IncludeLikedTracks != nil {
			t.Errorf("expected default settings, got %+v", p.Settings)
		}
	})

	t.Run("NewPreset without owner", func(t *testing.T) {
		_, err := NewPreset(0, "Default", DefaultSettings())
		if !errors.Is(err, ErrModelViolation) {
			t.Errorf("expected ErrModelViolation, got %v", err)
		}
	})

	t.Run("Validate collects every violation", func(t *testing.T) {
		p := &Preset{Settings: Settings{PlaylistSize: -1}}
		err := p.Validate()
		if err == nil {
			t.Fatal("expected error")
		}
		var violation *ViolationError
		if !errors.As(err, &violation) {
			t.Fatalf("expected a ViolationError in %v", err)
		}
		for _, field := range []string{"Preset.UserID", "Preset.Name", "Settings.PlaylistSize"} {
			if !strings.Contains(err.Error(), field) {
				t.Errorf("expected %s in %q", field, err.Error())
			}
		}
	})
}

func TestUser(t *testing.T) {
	u := NewUser(1)
	if err := u.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := int64(0)
	u.CurrentPresetID = &bad
	if err := u.Validate(); !errors.Is(err, ErrModelViolation) {
		t.Errorf("expected ErrModelViolation, got %v", err)
	}
}

func TestCurrentSchema(t *testing.T) {
	schema := CurrentSchema()

	playlists, ok := schema.Table(PlaylistsTable)
	if !ok {
		t.Fatal("expected Playlists table")
	}
	if playlists.Discriminator == nil || playlists.Discriminator.Column != "PlaylistType" {
		t.Fatal("expected PlaylistType discriminator")
	}
	if len(playlists.Discriminator.Kinds) != 4 {
		t.Errorf("expected 4 kinds, got %d", len(playlists.Discriminator.Kinds))
	}
	overwrite, ok := playlists.Column("Overwrite")
	if !ok || !overwrite.Nullable {
		t.Error("expected nullable Overwrite column")
	}
	fk, ok := playlists.ForeignKey("PresetId")
	if !ok || fk.OnDelete != Cascade || fk.RefTable != PresetsTable {
		t.Errorf("unexpected Playlists.PresetId foreign key: %+v", fk)
	}

	presets, _ := schema.Table(PresetsTable)
	size, ok := presets.Column(SettingsColumn("PlaylistSize"))
	if !ok || size.Default == nil || *size.Default != "20" {
		t.Errorf("expected Settings_PlaylistSize default 20, got %+v", size)
	}

	users, _ := schema.Table(UsersTable)
	if fk, ok := users.ForeignKey("CurrentPresetId"); !ok || fk.OnDelete != SetNull {
		t.Errorf("expected SET NULL current preset pointer, got %+v", fk)
	}
}
