// Package screen implements the catalog's screen state machine: welcome
// menu, search prompt, per-term counting, result listing and single item
// view, with the back-navigation rules that depend on the result count.
package screen

import (
	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/session"
)

// Kind identifies a screen.
type Kind int

const (
	KindWelcome Kind = iota
	KindSearchInput
	KindCounting
	KindListing
	KindItem
)

func (k Kind) String() string {
	switch k {
	case KindWelcome:
		return "welcome"
	case KindSearchInput:
		return "search-input"
	case KindCounting:
		return "counting"
	case KindListing:
		return "listing"
	case KindItem:
		return "item-view"
	default:
		return "unknown"
	}
}

// Category is one welcome menu entry: a search type served by a backend.
type Category struct {
	Key        string
	Label      string
	SearchType catalog.SearchType
	Backend    catalog.Backend
}

// State is the screen currently shown. Category is set from the search
// prompt onwards; Session from counting onwards.
type State struct {
	ID       string
	Kind     Kind
	Category *Category
	Session  *session.Session
}

// Frame is everything a renderer needs to draw the current screen.
type Frame struct {
	State   *State
	Menu    []Category
	QuitKey string
	Notice  string
}

// Normalize trims and upper-cases raw patron input into a command.
func Normalize(input string) string {
	return upper(trim(input))
}
