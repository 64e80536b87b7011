package infrastructure

import "time"

// PointModel 对应数据库中的 point 表，每个用户一行
type PointModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"size:64;uniqueIndex;not null"`
	Amount    int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (PointModel) TableName() string {
	return "point"
}
