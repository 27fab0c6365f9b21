package models

import "github.com/hashicorp/go-multierror"

// User is the root of the ownership graph. Presets belong to exactly one User and
// CurrentPresetID, when set, must reference one of them.
type User struct {
	ID              int64
	CurrentPresetID *int64
}

// NewUser returns a User with no current preset. An id of zero lets the store assign one.
func NewUser(id int64) *User {
	return &User{ID: id}
}

func (u *User) Validate() error {
	var result *multierror.Error
	if u.ID < 0 {
		result = multierror.Append(result, Violation("User", "ID", "must not be negative"))
	}
	if u.CurrentPresetID != nil && *u.CurrentPresetID <= 0 {
		result = multierror.Append(result, Violation("User", "CurrentPresetID", "must reference a persisted preset"))
	}
	return result.ErrorOrNil()
}
