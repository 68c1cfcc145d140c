package observerproto

import "ashfall.game/internal/protocol"

// Version is the observer protocol version (separate from the client WS protocol).
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Query subjects included in every STATE frame. Allowed: "world", "bag",
	// "home", "safe". Defaults to ["world"].
	Subjects []string `json:"subjects,omitempty"`

	// How often the feed checks the world version. Clamped to [100, 5000].
	PollIntervalMs int `json:"poll_interval_ms,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string                  `json:"protocol_version"`
	WorldID         string                  `json:"world_id"`
	Seed            int64                   `json:"seed"`
	Version         uint64                  `json:"world_version"`
	Catalogs        protocol.CatalogDigests `json:"catalogs"`
}

// Server -> Client. Sent whenever the world version changes (and once right
// after SUBSCRIBE).
type StateMsg struct {
	Type            string                    `json:"type"`
	ProtocolVersion string                    `json:"protocol_version"`
	Version         uint64                    `json:"world_version"`
	Subjects        map[string]map[string]any `json:"subjects"`
}
