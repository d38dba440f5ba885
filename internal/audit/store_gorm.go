package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/BaSui01/skillflow/skill"
)

// Record audit_log 表的 gorm 模型。表结构由 internal/migration 管理，
// 标签仅用于列名映射与测试环境下的 AutoMigrate。
type Record struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	InvocationID string    `gorm:"column:invocation_id;size:64;index:idx_audit_log_invocation" json:"invocation_id"`
	TenantID     string    `gorm:"column:tenant_id;size:64" json:"tenant_id"`
	UserID       string    `gorm:"column:user_id;size:64" json:"user_id"`
	Skill        string    `gorm:"size:64;index:idx_audit_log_skill_action" json:"skill"`
	Action       string    `gorm:"size:64;index:idx_audit_log_skill_action" json:"action"`
	Success      bool      `gorm:"not null" json:"success"`
	Code         string    `gorm:"size:32" json:"code"`
	Error        string    `gorm:"type:text" json:"error"`
	DurationMS   int64     `gorm:"column:duration_ms" json:"duration_ms"`
	Params       string    `gorm:"type:text" json:"params"`
	CreatedAt    time.Time `gorm:"column:created_at;index:idx_audit_log_created_at" json:"created_at"`
}

// TableName 固定表名，与迁移文件保持一致。
func (Record) TableName() string { return "audit_log" }

// AutoMigrate 按模型同步 audit_log 表结构。生产部署应走
// internal/migration 的版本化迁移，这里服务于嵌入方与测试。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// GormStore 把审计记录写入关系型审计库。
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建关系型审计存储。
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm DB is required")
	}
	return &GormStore{db: db}, nil
}

// Store 插入一条审计记录。
func (s *GormStore) Store(ctx context.Context, e skill.AuditEntry) error {
	rec := toRecord(e)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Recent 按时间倒序返回最近 limit 条审计记录，limit 非正时取 50。
func (s *GormStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Record
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	return out, nil
}

// toRecord 把审计条目映射为行。Params 序列化为 JSON 文本，
// 入队前已经过脱敏。
func toRecord(e skill.AuditEntry) Record {
	var params string
	if len(e.Params) > 0 {
		if raw, err := json.Marshal(e.Params); err == nil {
			params = string(raw)
		}
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Record{
		InvocationID: e.InvocationID,
		TenantID:     e.TenantID,
		UserID:       e.UserID,
		Skill:        e.Skill,
		Action:       e.Action,
		Success:      e.Success,
		Code:         string(e.Code),
		Error:        e.Error,
		DurationMS:   e.DurationMS,
		Params:       params,
		CreatedAt:    ts,
	}
}
