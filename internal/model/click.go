package model

// Click 点击流水：一行代表一次被接受的点击，创建后不再修改或删除
type Click struct {
	ID     string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID string `json:"userId" gorm:"type:varchar(191);not null;index:idx_click_user_created,priority:1"`
	// CreatedAt 毫秒时间戳，同时用于展示排序和限流窗口判断
	CreatedAt int64 `json:"createdAt" gorm:"not null;autoCreateTime:milli;index:idx_click_user_created,priority:2"`
	// AuthorRef 指向 display_names.id
	AuthorRef *string `json:"authorRef,omitempty" gorm:"type:varchar(36)"`
}

func (Click) TableName() string { return "clicks" }
