package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/BaSui01/skillflow/config"
	"github.com/BaSui01/skillflow/skill"
)

// document audit_log 集合的文档结构。
type document struct {
	InvocationID string         `bson:"invocation_id"`
	TenantID     string         `bson:"tenant_id,omitempty"`
	UserID       string         `bson:"user_id,omitempty"`
	Skill        string         `bson:"skill"`
	Action       string         `bson:"action"`
	Success      bool           `bson:"success"`
	Code         string         `bson:"code,omitempty"`
	Error        string         `bson:"error,omitempty"`
	DurationMS   int64          `bson:"duration_ms"`
	Params       map[string]any `bson:"params,omitempty"`
	CreatedAt    time.Time      `bson:"created_at"`
}

// MongoStore 把审计记录写入 MongoDB 集合，作为关系型审计库的备选。
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore 按配置连接 MongoDB 并做一次 Ping 校验连通性。
func NewMongoStore(cfg config.MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo URI is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "audit_log"
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(collection),
	}, nil
}

// Store 插入一条审计文档。
func (s *MongoStore) Store(ctx context.Context, e skill.AuditEntry) error {
	if _, err := s.collection.InsertOne(ctx, toDocument(e)); err != nil {
		return fmt.Errorf("insert audit document: %w", err)
	}
	return nil
}

// Close 断开 MongoDB 连接。
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toDocument(e skill.AuditEntry) document {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return document{
		InvocationID: e.InvocationID,
		TenantID:     e.TenantID,
		UserID:       e.UserID,
		Skill:        e.Skill,
		Action:       e.Action,
		Success:      e.Success,
		Code:         string(e.Code),
		Error:        e.Error,
		DurationMS:   e.DurationMS,
		Params:       e.Params,
		CreatedAt:    ts,
	}
}
