package mqtt

import "fmt"

// Topics builds the topic strings used on the device message bus. All topics
// are rooted at the account so a single subscription can cover every family
// owned by the account.
//
// Layout:
//
//	{account}/{family}/player/{player}/command   commands to a device
//	{account}/{family}/player/{player}/events    events from a device
type Topics struct {
	Account string
}

// PlayerCommand returns the command topic for a single player.
func (t Topics) PlayerCommand(familyID, playerID string) string {
	return fmt.Sprintf("%s/%s/player/%s/command", t.Account, familyID, playerID)
}

// PlayerEvents returns the event topic for a single player.
func (t Topics) PlayerEvents(familyID, playerID string) string {
	return fmt.Sprintf("%s/%s/player/%s/events", t.Account, familyID, playerID)
}

// FamilyEvents returns a wildcard subscription covering the event topics of
// every player in one family.
func (t Topics) FamilyEvents(familyID string) string {
	return fmt.Sprintf("%s/%s/player/+/events", t.Account, familyID)
}

// AllEvents returns a wildcard subscription covering the event topics of
// every player in every family of the account.
func (t Topics) AllEvents() string {
	return fmt.Sprintf("%s/+/player/+/events", t.Account)
}
