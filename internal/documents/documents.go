// Package documents defines the application's persisted documents: saved
// accounts, UI settings, UI state, console history and themes.
//
// Each document is fully described by a storage class, a filename and a
// default-data provider; persistence behavior comes from package configfile.
package documents

import (
	"errors"

	"github.com/kalambet/docstate/internal/configfile"
	"github.com/kalambet/docstate/internal/paths"
)

var (
	// ErrUnknownDocument is returned when looking up an unregistered name.
	ErrUnknownDocument = errors.New("unknown document")

	// ErrUnknownClient is returned by Accounts.Add for a user with no session.
	ErrUnknownClient = errors.New("no client for user")

	// ErrInvalidThemeName is returned for theme names that are not a plain
	// filename.
	ErrInvalidThemeName = errors.New("invalid theme name")
)

// Registered JSON document names.
const (
	NameAccounts = "accounts"
	NameSettings = "settings"
	NameState    = "state"
	NameHistory  = "history"
)

type kind struct {
	name     string
	class    paths.StorageClass
	filename string
	defaults configfile.Defaults
}

// registry lists every JSON document opened by a Set, in display order.
var registry = []kind{
	{name: NameAccounts, class: paths.UserConfig, filename: "accounts.json"},
	{name: NameSettings, class: paths.UserConfig, filename: "settings.json", defaults: settingsDefaults},
	{name: NameState, class: paths.UserData, filename: "state.json", defaults: stateDefaults},
	{name: NameHistory, class: paths.UserData, filename: "history.json", defaults: historyDefaults},
}

func lookup(name string) (kind, bool) {
	for _, k := range registry {
		if k.name == name {
			return k, true
		}
	}
	return kind{}, false
}
