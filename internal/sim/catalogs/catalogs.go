package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Catalogs struct {
	Items       ItemCatalog
	Sites       SiteCatalog
	NPCs        NPCCatalog
	SecretRooms SecretRoomCatalog
	Monsters    MonsterCatalog
}

type ItemCatalog struct {
	IDs    []string // sorted, for deterministic iteration
	Defs   map[string]ItemDef
	Digest string
}

// ItemDef is immutable once loaded; inventories store id+count only.
type ItemDef struct {
	ID     string `json:"id"`
	Weight int    `json:"weight"` // 0 = bulk item, weighed in batches
	Value  int    `json:"value"`

	Food     *FoodEffect   `json:"food,omitempty"`
	Medicine *MedEffect    `json:"medicine,omitempty"`
	Weapon   *WeaponEffect `json:"weapon,omitempty"`
	Armor    *ArmorEffect  `json:"armor,omitempty"`
	Tool     *ToolEffect   `json:"tool,omitempty"`
	Buff     *BuffEffect   `json:"buff,omitempty"`
}

type FoodEffect struct {
	Satiety int `json:"satiety"`
	Water   int `json:"water,omitempty"`
}

type MedEffect struct {
	HP     int `json:"hp"`
	Infect int `json:"infect,omitempty"`
}

type WeaponEffect struct {
	Attack int    `json:"attack"`
	Ammo   string `json:"ammo,omitempty"`
}

type ArmorEffect struct {
	Defense int `json:"defense"`
}

type ToolEffect struct {
	WorkType   int `json:"work_type"`
	Durability int `json:"durability,omitempty"`
}

type BuffEffect struct {
	Kind     string `json:"kind"`
	Duration int    `json:"duration,omitempty"`
}

type SiteCatalog struct {
	ByID   map[int]SiteDef
	Digest string
}

type SiteDef struct {
	ID          int    `json:"id"`
	Coordinate  [2]int `json:"coordinate"`
	BattleRooms int    `json:"battle_rooms"`
	WorkRooms   int    `json:"work_rooms"`
	Difficulty  [2]int `json:"difficulty"`

	// Budget per work room, rolled against ProduceList on completion.
	ProduceValue     int            `json:"produce_value"`
	ProduceList      []ProduceEntry `json:"produce_list,omitempty"`
	FixedProduceList []FixedDrop    `json:"fixed_produce_list,omitempty"`

	SecretRoomsID int   `json:"secret_rooms_id,omitempty"`
	UnlockSites   []int `json:"unlock_sites,omitempty"`
}

// ProduceEntry is one weighted loot-table line. ItemID may be a wildcard
// pattern resolved at roll time.
type ProduceEntry struct {
	ItemID string `json:"item_id"`
	Weight int    `json:"weight"`
}

type FixedDrop struct {
	ItemID string `json:"item_id"`
	Num    int    `json:"num"`
}

type SecretRoomCatalog struct {
	ByID   map[int]SecretRoomsDef
	Digest string
}

type SecretRoomsDef struct {
	ID          int     `json:"id"`
	Probability float64 `json:"probability"`
	MaxCount    int     `json:"max_count"`
	MinRooms    int     `json:"min_rooms"`
	MaxRooms    int     `json:"max_rooms"`

	MinDifficultyOffset int `json:"min_difficulty_offset"`
	MaxDifficultyOffset int `json:"max_difficulty_offset"`

	ProduceValue int            `json:"produce_value"`
	ProduceList  []ProduceEntry `json:"produce_list,omitempty"`
}

// ReputationLevels is the fixed size of every per-level NPC table.
const ReputationLevels = 11

type NPCCatalog struct {
	ByID   map[int]NPCDef
	Digest string
}

// NPCDef carries the per-reputation-level tables, each exactly
// ReputationLevels long (levels 0-10).
type NPCDef struct {
	ID         int    `json:"id"`
	Coordinate [2]int `json:"coordinate"`

	Favorite [][]FavoriteEntry `json:"favorite"`
	Trading  [][]FixedDrop     `json:"trading"`
	NeedItem []*NeedItem       `json:"need_item"`
	Gift     []*Gift           `json:"gift"`
}

// FavoriteEntry marks an item the NPC values at a non-unit price multiplier
// at a given reputation level.
type FavoriteEntry struct {
	ItemID string  `json:"item_id"`
	Price  float64 `json:"price"`
}

type NeedItem struct {
	ItemID string `json:"item_id"`
	Num    int    `json:"num"`
}

type Gift struct {
	ItemID string `json:"item_id,omitempty"`
	Num    int    `json:"num,omitempty"`
	SiteID int    `json:"site_id,omitempty"`
}

type MonsterCatalog struct {
	// Candidate monster-id packs per difficulty tier.
	ByDifficulty map[int][][]string
	Digest       string
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadSites(filepath.Join(configDir, "sites.json"), &c.Sites); err != nil {
		return nil, err
	}
	if err := loadNPCs(filepath.Join(configDir, "npcs.json"), &c.NPCs); err != nil {
		return nil, err
	}
	if err := loadSecretRooms(filepath.Join(configDir, "secret_rooms.json"), &c.SecretRooms); err != nil {
		return nil, err
	}
	if err := loadMonsters(filepath.Join(configDir, "monsters.json"), &c.Monsters); err != nil {
		return nil, err
	}

	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if d.Value <= 0 {
			// LootGenerator termination relies on every item having
			// positive value.
			return fmt.Errorf("items.json: %s: value must be > 0", d.ID)
		}
		if d.Weight < 0 {
			return fmt.Errorf("items.json: %s: negative weight", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.IDs = ids
	return nil
}

func loadSites(path string, out *SiteCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []SiteDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("sites.json: %w", err)
	}
	out.ByID = map[int]SiteDef{}
	for _, d := range defs {
		if d.ID == 0 {
			return fmt.Errorf("sites.json: missing id")
		}
		if d.BattleRooms > 0 && d.Difficulty[1] < d.Difficulty[0] {
			return fmt.Errorf("sites.json: site %d: bad difficulty range", d.ID)
		}
		if err := checkProduceList(d.ProduceList); err != nil {
			return fmt.Errorf("sites.json: site %d: %w", d.ID, err)
		}
		out.ByID[d.ID] = d
	}
	return nil
}

// checkProduceList rejects weights the weighted draw cannot take.
func checkProduceList(list []ProduceEntry) error {
	for _, p := range list {
		if p.ItemID == "" {
			return fmt.Errorf("produce entry with empty item_id")
		}
		if p.Weight < 0 {
			return fmt.Errorf("%s: negative weight", p.ItemID)
		}
	}
	return nil
}

func loadNPCs(path string, out *NPCCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []NPCDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("npcs.json: %w", err)
	}
	out.ByID = map[int]NPCDef{}
	for _, d := range defs {
		if d.ID == 0 {
			return fmt.Errorf("npcs.json: missing id")
		}
		if len(d.Favorite) != ReputationLevels ||
			len(d.Trading) != ReputationLevels ||
			len(d.NeedItem) != ReputationLevels ||
			len(d.Gift) != ReputationLevels {
			return fmt.Errorf("npcs.json: npc %d: per-level tables must have exactly %d entries", d.ID, ReputationLevels)
		}
		out.ByID[d.ID] = d
	}
	return nil
}

func loadSecretRooms(path string, out *SecretRoomCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []SecretRoomsDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("secret_rooms.json: %w", err)
	}
	out.ByID = map[int]SecretRoomsDef{}
	for _, d := range defs {
		if d.ID == 0 {
			return fmt.Errorf("secret_rooms.json: missing id")
		}
		if d.MinRooms < 1 || d.MaxRooms < d.MinRooms {
			return fmt.Errorf("secret_rooms.json: config %d: bad room range", d.ID)
		}
		if err := checkProduceList(d.ProduceList); err != nil {
			return fmt.Errorf("secret_rooms.json: config %d: %w", d.ID, err)
		}
		out.ByID[d.ID] = d
	}
	return nil
}

func loadMonsters(path string, out *MonsterCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []struct {
		Difficulty int        `json:"difficulty"`
		Packs      [][]string `json:"packs"`
	}
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("monsters.json: %w", err)
	}
	out.ByDifficulty = map[int][][]string{}
	for _, d := range defs {
		if len(d.Packs) == 0 {
			return fmt.Errorf("monsters.json: difficulty %d has no packs", d.Difficulty)
		}
		out.ByDifficulty[d.Difficulty] = d.Packs
	}
	return nil
}
