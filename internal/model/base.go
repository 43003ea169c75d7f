package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Tags 标签集合，以 JSON 数组存储（PostgreSQL jsonb / MySQL json）
type Tags = datatypes.JSONSlice[string]

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// VersionedModel 受乐观并发控制的记录
// Version 从 0 开始，每次提交恰好 +1，只能经由并发闸门修改
type VersionedModel struct {
	BaseModel
	Version int `gorm:"not null;default:0" json:"version"`
}

// NewID 生成记录主键
func NewID() string {
	return uuid.NewString()
}

// HasTag 判断标签集合中是否包含 tag
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func cloneTags(tags Tags) Tags {
	if tags == nil {
		return nil
	}
	out := make(Tags, len(tags))
	copy(out, tags)
	return out
}
