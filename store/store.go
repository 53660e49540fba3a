package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BaSui01/llmcouncil/config"
	"github.com/BaSui01/llmcouncil/council"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound 会话不存在
var ErrNotFound = errors.New("conversation not found")

// DefaultListLimit List 未指定 limit 时返回的条数
const DefaultListLimit = 20

// Conversation 一次已保存的审议
type Conversation struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Query       string    `gorm:"not null" json:"query"`
	State       string    `gorm:"size:32;index" json:"state"`
	Chairman    string    `gorm:"size:255" json:"chairman"`
	Members     string    `json:"members"`
	FinalAnswer string    `json:"final_answer"`
	Result      string    `json:"-"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 表名
func (Conversation) TableName() string { return "council_conversations" }

// Decode 还原完整的审议结果
func (c *Conversation) Decode() (*council.Result, error) {
	var r council.Result
	if err := json.Unmarshal([]byte(c.Result), &r); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", c.ID, err)
	}
	return &r, nil
}

// MemberIDs 成员标识列表
func (c *Conversation) MemberIDs() []string {
	if c.Members == "" {
		return nil
	}
	return strings.Split(c.Members, ",")
}

// QueryObserver 接收每次存储操作的耗时，internal/metrics.Collector 实现了它
type QueryObserver interface {
	RecordDBQuery(operation string, duration time.Duration)
}

// Option 配置 Store
type Option func(*Store)

// WithObserver 设置查询耗时观察者
func WithObserver(o QueryObserver) Option {
	return func(s *Store) { s.observer = o }
}

// Store 基于 gorm 的会话存储
type Store struct {
	db       *gorm.DB
	logger   *zap.Logger
	observer QueryObserver
}

// Open 按配置打开数据库并迁移表结构
func Open(cfg config.DatabaseConfig, log *zap.Logger, opts ...Option) (*Store, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s, err := New(db, log, opts...)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	s.logger.Info("database connected", zap.String("driver", driverName(cfg.Driver)))
	return s, nil
}

// New 基于已有连接创建 Store，并自动迁移表结构
func New(db *gorm.DB, log *zap.Logger, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{db: db, logger: log.With(zap.String("component", "store"))}
	for _, opt := range opts {
		opt(s)
	}
	if err := db.AutoMigrate(&Conversation{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return s, nil
}

func driverName(driver string) string {
	if driver == "" {
		return "sqlite"
	}
	return driver
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch driverName(cfg.Driver) {
	case "sqlite":
		if err := ensureDir(cfg.Name); err != nil {
			return nil, err
		}
		return sqlite.Open(cfg.DSN()), nil
	case "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "mysql":
		return mysql.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", cfg.Driver)
	}
}

// ensureDir 为 sqlite 文件创建父目录
func ensureDir(name string) error {
	if name == "" || strings.HasPrefix(name, "file:") || strings.Contains(name, ":memory:") {
		return nil
	}
	dir := filepath.Dir(name)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// Save 保存（或覆盖）一次审议结果
func (s *Store) Save(ctx context.Context, r *council.Result) (*Conversation, error) {
	if r == nil || r.SessionID == "" {
		return nil, fmt.Errorf("result has no session id")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	members := make([]string, len(r.Council))
	for i, m := range r.Council {
		members[i] = m.ID
	}
	conv := &Conversation{
		ID:          r.SessionID,
		Query:       r.Query,
		State:       string(r.State),
		Chairman:    r.Chairman.ID,
		Members:     strings.Join(members, ","),
		FinalAnswer: r.FinalAnswer,
		Result:      string(data),
		CreatedAt:   r.CreatedAt,
	}

	defer s.observe("save", time.Now())
	if err := s.db.WithContext(ctx).Save(conv).Error; err != nil {
		return nil, fmt.Errorf("save conversation %s: %w", conv.ID, err)
	}
	s.logger.Debug("conversation saved", zap.String("id", conv.ID), zap.String("state", conv.State))
	return conv, nil
}

// Get 按 ID 读取
func (s *Store) Get(ctx context.Context, id string) (*Conversation, error) {
	defer s.observe("get", time.Now())

	var conv Conversation
	err := s.db.WithContext(ctx).First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &conv, nil
}

// List 按创建时间倒序返回最近的会话，limit <= 0 时使用 DefaultListLimit
func (s *Store) List(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	defer s.observe("list", time.Now())

	var convs []Conversation
	err := s.db.WithContext(ctx).
		Omit("result").
		Order("created_at DESC").
		Order("id").
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// Delete 删除会话，不存在时返回 ErrNotFound
func (s *Store) Delete(ctx context.Context, id string) error {
	defer s.observe("delete", time.Now())

	res := s.db.WithContext(ctx).Delete(&Conversation{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete conversation %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Ping 检查数据库连接
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) observe(operation string, start time.Time) {
	if s.observer != nil {
		s.observer.RecordDBQuery(operation, time.Since(start))
	}
}
