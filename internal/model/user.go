package model

import "time"

// User 主站用户公开资料的本地只读副本
// 由 Kafka CDC 消费者写入，请求链路只读不写
type User struct {
	ID        uint64 `gorm:"primaryKey"`
	Nickname  string `gorm:"type:varchar(50)"`
	AvatarURL string `gorm:"type:varchar(255)"`
	IsDeleted bool   `gorm:"type:tinyint(1);default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "im_users"
}
