package documents

import (
	"fmt"
	"sort"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/kalambet/docstate/internal/configfile"
)

// Session is the part of a logged-in client that Accounts persists.
type Session struct {
	UserID      id.UserID
	Homeserver  string
	AccessToken string
	DeviceID    id.DeviceID
}

// ClientSource looks up the live session for a user.
type ClientSource interface {
	Session(userID id.UserID) (Session, bool)
}

// StaticSessions is a ClientSource backed by a fixed map.
type StaticSessions map[id.UserID]Session

// Session implements ClientSource.
func (s StaticSessions) Session(userID id.UserID) (Session, bool) {
	sess, ok := s[userID]
	return sess, ok
}

// MautrixClients is a ClientSource over connected mautrix clients.
type MautrixClients map[id.UserID]*mautrix.Client

// Session implements ClientSource.
func (m MautrixClients) Session(userID id.UserID) (Session, bool) {
	c, ok := m[userID]
	if !ok || c == nil {
		return Session{}, false
	}
	var homeserver string
	if c.HomeserverURL != nil {
		homeserver = c.HomeserverURL.String()
	}
	return Session{
		UserID:      c.UserID,
		Homeserver:  homeserver,
		AccessToken: c.AccessToken,
		DeviceID:    c.DeviceID,
	}, true
}

// SavedAccount is one entry of accounts.json.
type SavedAccount struct {
	UserID     id.UserID   `json:"-"`
	Homeserver string      `json:"homeserver"`
	Token      string      `json:"token"`
	DeviceID   id.DeviceID `json:"device_id"`
}

// Accounts stores login sessions keyed by user ID.
type Accounts struct {
	*configfile.JSONDocument
	clients ClientSource
}

// AnySaved reports whether at least one account is stored.
func (a *Accounts) AnySaved() bool {
	return len(a.Read()) > 0
}

// Add saves the current session of userID, replacing any previous entry.
func (a *Accounts) Add(userID id.UserID) error {
	if a.clients == nil {
		return fmt.Errorf("%w: %s", ErrUnknownClient, userID)
	}
	sess, ok := a.clients.Session(userID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClient, userID)
	}
	if sess.UserID == "" {
		sess.UserID = userID
	}

	return a.Update(func(m map[string]any) map[string]any {
		m[string(sess.UserID)] = map[string]any{
			"homeserver": sess.Homeserver,
			"token":      sess.AccessToken,
			"device_id":  string(sess.DeviceID),
		}
		return m
	})
}

// Delete removes userID's entry, if present.
func (a *Accounts) Delete(userID id.UserID) error {
	return a.Update(func(m map[string]any) map[string]any {
		delete(m, string(userID))
		return m
	})
}

// List returns the saved accounts sorted by user ID. Entries that are not
// objects are skipped.
func (a *Accounts) List() []SavedAccount {
	data := a.Read()
	out := make([]SavedAccount, 0, len(data))
	for uid, raw := range data {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		acc := SavedAccount{UserID: id.UserID(uid)}
		acc.Homeserver, _ = entry["homeserver"].(string)
		acc.Token, _ = entry["token"].(string)
		if dev, ok := entry["device_id"].(string); ok {
			acc.DeviceID = id.DeviceID(dev)
		}
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
