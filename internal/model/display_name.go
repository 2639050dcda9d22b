package model

// DisplayName 用户资料与装扮（每个 user_id 至多一行）
type DisplayName struct {
	ID              string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID          string  `json:"userId" gorm:"type:varchar(191);not null;uniqueIndex:ux_display_name_user"`
	DisplayName     string  `json:"displayName" gorm:"type:varchar(64);not null"`
	CursorColor     *string `json:"cursorColor,omitempty" gorm:"type:varchar(64)"`
	HatSlug         *string `json:"hatSlug,omitempty" gorm:"type:varchar(64)"`
	AccessorySlug   *string `json:"accessorySlug,omitempty" gorm:"type:varchar(64)"`
	EffectSlug      *string `json:"effectSlug,omitempty" gorm:"type:varchar(64)"`
	ProfileImageURL *string `json:"profileImageUrl,omitempty" gorm:"type:text"`
	UpdatedAt       int64   `json:"updatedAt,omitempty" gorm:"autoUpdateTime:milli"`
}

func (DisplayName) TableName() string { return "display_names" }

// Slot 可装备的栏位
type Slot string

const (
	SlotColor     Slot = "color"
	SlotHat       Slot = "hat"
	SlotAccessory Slot = "accessory"
	SlotEffect    Slot = "effect"
	SlotName      Slot = "name"
)

// Column 返回栏位在 display_names 中对应的列
func (s Slot) Column() string {
	switch s {
	case SlotColor:
		return "cursor_color"
	case SlotHat:
		return "hat_slug"
	case SlotAccessory:
		return "accessory_slug"
	case SlotEffect:
		return "effect_slug"
	case SlotName:
		return "display_name"
	}
	return ""
}

func (s Slot) Valid() bool { return s.Column() != "" }
