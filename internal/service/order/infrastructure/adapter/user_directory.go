package adapter

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"fulfillment/internal/store/gormstore"
)

// UserModel 是用户目录表，用户的注册和资料维护在本服务之外。
type UserModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:128"`
	CreatedAt time.Time
}

func (UserModel) TableName() string {
	return "user_account"
}

// GormUserDirectory 通过 user_account 表判断用户是否存在
type GormUserDirectory struct {
	db *gorm.DB
}

func NewGormUserDirectory(db *gorm.DB) *GormUserDirectory {
	return &GormUserDirectory{db: db}
}

func (d *GormUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	var n int64
	err := gormstore.Conn(ctx, d.db).Model(&UserModel{}).Where("id = ?", userID).Count(&n).Error
	if err != nil {
		return false, gormstore.Translate(err, "check user")
	}
	return n > 0, nil
}

// Register 写入一个用户，已存在时忽略。
func (d *GormUserDirectory) Register(ctx context.Context, userID, name string) error {
	err := gormstore.Conn(ctx, d.db).Where(UserModel{ID: userID}).
		Attrs(UserModel{Name: name, CreatedAt: time.Now()}).
		FirstOrCreate(&UserModel{}).Error
	return gormstore.Translate(err, "register user")
}

// MemoryUserDirectory 是进程内的用户目录
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[string]string
}

func NewMemoryUserDirectory() *MemoryUserDirectory {
	return &MemoryUserDirectory{users: make(map[string]string)}
}

func (d *MemoryUserDirectory) Exists(_ context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[userID]
	return ok, nil
}

func (d *MemoryUserDirectory) Register(_ context.Context, userID, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[userID]; !ok {
		d.users[userID] = name
	}
	return nil
}
