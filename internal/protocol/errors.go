package protocol

const (
	// Transport/handshake validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Command layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrCapacity      = "E_CAPACITY"
	ErrNoItems       = "E_NO_ITEMS"
	ErrNoMatch       = "E_NO_MATCH"
	ErrEmptyTable    = "E_EMPTY_TABLE"
	ErrNoSession     = "E_NO_SESSION"
	ErrSessionOpen   = "E_SESSION_OPEN"
	ErrSiteClosed    = "E_SITE_CLOSED"
	ErrSiteDone      = "E_SITE_DONE"
	ErrBadTrade      = "E_BAD_TRADE"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrInvalidTarget:   {},
	ErrCapacity:        {},
	ErrNoItems:         {},
	ErrNoMatch:         {},
	ErrEmptyTable:      {},
	ErrNoSession:       {},
	ErrSessionOpen:     {},
	ErrSiteClosed:      {},
	ErrSiteDone:        {},
	ErrBadTrade:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
