package model

import "gorm.io/datatypes"

// AvatarItem 商店目录条目。slug 是对外稳定标识，购买记录与装扮栏位均引用 slug；
// IsActive=false 为软删除，条目保留以解析历史购买
type AvatarItem struct {
	ID          string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Slug        string            `json:"slug" gorm:"type:varchar(64);not null;uniqueIndex:ux_avatar_item_slug"`
	Label       string            `json:"label" gorm:"type:varchar(128);not null"`
	Description *string           `json:"description,omitempty" gorm:"type:text"`
	Type        string            `json:"type" gorm:"type:varchar(32);not null;index"`
	Category    *string           `json:"category,omitempty" gorm:"type:varchar(64)"`
	Rarity      *string           `json:"rarity,omitempty" gorm:"type:varchar(32)"`
	SortOrder   *int              `json:"sortOrder,omitempty"`
	Price       int64             `json:"price" gorm:"not null"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	IsActive    bool              `json:"isActive" gorm:"not null;index"`
	CreatedAt   int64             `json:"createdAt" gorm:"not null;autoCreateTime:milli"`
}

func (AvatarItem) TableName() string { return "avatar_items" }

// ColorValue 颜色类条目写入 cursorColor 的值：优先 metadata.color，否则为 slug
func (i *AvatarItem) ColorValue() string {
	if i.Metadata != nil {
		if v, ok := i.Metadata["color"].(string); ok && v != "" {
			return v
		}
	}
	return i.Slug
}
