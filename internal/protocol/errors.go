package protocol

// Stable rejection codes carried on status events. The user-facing text may
// change; panels key off these.
const (
	ErrUnknownCommand = "E_UNKNOWN_COMMAND"
	ErrDisabled       = "E_DISABLED"
	ErrCooldown       = "E_COOLDOWN"
	ErrLocked         = "E_LOCKED"
	ErrOrigin         = "E_ORIGIN"
	ErrNoPermission   = "E_NO_PERMISSION"
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrNoGold         = "E_NO_GOLD"
	ErrNoMaterials    = "E_NO_MATERIALS"
	ErrUnknownItem    = "E_UNKNOWN_ITEM"
	ErrBagFull        = "E_BAG_FULL"
	ErrFeatureLocked  = "E_FEATURE_LOCKED"
	ErrNotCasting     = "E_NOT_CASTING"
	ErrAlreadyCasting = "E_ALREADY_CASTING"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrUnknownCommand: {},
	ErrDisabled:       {},
	ErrCooldown:       {},
	ErrLocked:         {},
	ErrOrigin:         {},
	ErrNoPermission:   {},
	ErrBadRequest:     {},
	ErrNoGold:         {},
	ErrNoMaterials:    {},
	ErrUnknownItem:    {},
	ErrBagFull:        {},
	ErrFeatureLocked:  {},
	ErrNotCasting:     {},
	ErrAlreadyCasting: {},
	ErrInternal:       {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
