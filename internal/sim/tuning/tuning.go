package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	// Bag capacity: base plus a bonus per capacity item owned anywhere
	// (bag or home storage), not per equipped item.
	BagBaseWeight int            `yaml:"bag_base_weight"`
	BagBonusItems map[string]int `yaml:"bag_bonus_items"`

	// Safe capacity applies only while the safe building is active.
	SafeMaxWeight int `yaml:"safe_max_weight"`

	// Zero-unit-weight items are weighed in batches of this size.
	BulkBatchSize int `yaml:"bulk_batch_size"`

	// Secret-room battle difficulty is clamped to this range after offsets.
	SecretDifficultyMin int `yaml:"secret_difficulty_min"`
	SecretDifficultyMax int `yaml:"secret_difficulty_max"`

	// Distinct work-task flavors for normal and secret work rooms.
	WorkRoomTypes       int `yaml:"work_room_types"`
	SecretWorkRoomTypes int `yaml:"secret_work_room_types"`

	SnapshotEverySec int `yaml:"snapshot_every_sec"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

// Defaults returns the tuning used when no tuning.yaml is present.
func Defaults() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.BagBaseWeight == 0 {
		t.BagBaseWeight = 40
	}
	if t.BagBonusItems == nil {
		t.BagBonusItems = map[string]int{
			"item_ammo_enhanced_backpack":       10,
			"item_ammo_military_grade_backpack": 20,
			"item_special_big_bag":              30,
		}
	}
	if t.SafeMaxWeight == 0 {
		t.SafeMaxWeight = 50
	}
	if t.BulkBatchSize == 0 {
		t.BulkBatchSize = 50
	}
	if t.SecretDifficultyMin == 0 {
		t.SecretDifficultyMin = 1
	}
	if t.SecretDifficultyMax == 0 {
		t.SecretDifficultyMax = 12
	}
	if t.WorkRoomTypes == 0 {
		t.WorkRoomTypes = 3
	}
	if t.SecretWorkRoomTypes == 0 {
		t.SecretWorkRoomTypes = 3
	}
	if t.SnapshotEverySec == 0 {
		t.SnapshotEverySec = 60
	}
}
