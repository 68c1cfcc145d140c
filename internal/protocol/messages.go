package protocol

// Command ops accepted by the engine.
const (
	OpExplore      = "EXPLORE"
	OpEnterSecret  = "ENTER_SECRET"
	OpLeaveSecret  = "LEAVE_SECRET"
	OpWithdrawSite = "WITHDRAW_SITE"
	OpDepositHome  = "DEPOSIT_HOME"
	OpWithdrawHome = "WITHDRAW_HOME"
	OpDepositSafe  = "DEPOSIT_SAFE"
	OpWithdrawSafe = "WITHDRAW_SAFE"
	OpTradeOpen    = "TRADE_OPEN"
	OpTradeOffer   = "TRADE_OFFER"
	OpTradeRetract = "TRADE_RETRACT"
	OpTradeTake    = "TRADE_TAKE"
	OpTradeReturn  = "TRADE_RETURN"
	OpTradeCommit  = "TRADE_COMMIT"
	OpTradeCancel  = "TRADE_CANCEL"
	OpGiveNeedItem = "GIVE_NEED_ITEM"
	OpRaidSite     = "RAID_SITE"
	OpQuery        = "QUERY"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Seed            int64          `json:"seed"`
	Version         uint64         `json:"world_version"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	ItemsDigest       string `json:"items_digest"`
	SitesDigest       string `json:"sites_digest"`
	NPCsDigest        string `json:"npcs_digest"`
	SecretRoomsDigest string `json:"secret_rooms_digest"`
	MonstersDigest    string `json:"monsters_digest"`
}

// CMD (client -> server). One engine operation per message; the engine runs
// each command to completion before the next.
type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Op              string `json:"op"`

	SiteID int    `json:"site_id,omitempty"`
	NPCID  int    `json:"npc_id,omitempty"`
	ItemID string `json:"item_id,omitempty"`
	Count  int    `json:"count,omitempty"`

	// EXPLORE: outcome of the battle room supplied by the combat resolver.
	BattleWon bool `json:"battle_won,omitempty"`

	// QUERY subject: "site" | "bag" | "safe" | "home" | "npc".
	Subject string `json:"subject,omitempty"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type    string         `json:"type"`
	Ref     string         `json:"ref"`
	OK      bool           `json:"ok"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Version uint64         `json:"world_version"`
	Data    map[string]any `json:"data,omitempty"`
}

// ItemStack is an inventory line on the wire.
type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}
