// Package tui provides the Bubble Tea browser for rover photos.
package tui

import "github.com/robertmeta/rover-cli/controller"

// RoversLoaded is sent when the initial rover list has been fetched.
type RoversLoaded struct {
	State controller.State
	Err   error
}

// RoverSelected is sent when cameras and the date range of a rover arrive.
type RoverSelected struct {
	Rover string
	State controller.State
	Err   error
}

// SearchDone is sent when a photo search finishes or fails validation.
type SearchDone struct {
	State controller.State
	Err   error
}

// FavoritesChanged is sent after a save, delete or reset.
type FavoritesChanged struct {
	State controller.State
	Err   error
}

// SlideTick advances the carousel. Ticks from a stopped carousel carry an
// old Seq and are dropped.
type SlideTick struct {
	Seq int
}

// ConfirmationExpired hides the save confirmation.
type ConfirmationExpired struct {
	Seq int
}
