package model

// AvatarPurchase 购买流水：不可变。Amount 记录成交时价格，与目录后续调价解耦
type AvatarPurchase struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID      string `json:"userId" gorm:"type:varchar(191);not null;index:idx_purchase_user_slug,priority:1"`
	ItemSlug    string `json:"itemSlug" gorm:"type:varchar(64);not null;index:idx_purchase_user_slug,priority:2"`
	PurchasedAt int64  `json:"purchasedAt" gorm:"not null;autoCreateTime:milli"`
	Amount      int64  `json:"amount" gorm:"not null"`
}

func (AvatarPurchase) TableName() string { return "avatar_purchases" }
