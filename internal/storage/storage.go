package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"crypto-ticker-engine/pkg/types"
)

const announcementKey = "ticker:announcement"

// CoinRecord 币种表模型。in_message 由仪表盘独占写入，引擎的
// PersistWatchSet 永远不会碰这一列。
type CoinRecord struct {
	ID            string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Symbol        *string    `gorm:"type:varchar(20)" json:"symbol"`
	Price         *float64   `gorm:"type:decimal(20,8)" json:"price"`
	PricePrevious *float64   `gorm:"type:decimal(20,8)" json:"price_previous"`
	InMessage     bool       `gorm:"not null;default:false" json:"in_message"`
	LastUpdated   *time.Time `json:"last_updated"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (CoinRecord) TableName() string { return "coin_data" }

// MessageRecord 播报日志模型，每个周期追加一条（空消息也记）
type MessageRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	Message   string    `gorm:"type:text" json:"message"`
}

func (MessageRecord) TableName() string { return "message_log" }

// PriceRecord 价格历史模型，由仪表盘的保存操作写入
type PriceRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	CoinID    string    `gorm:"type:varchar(64);not null;index" json:"coin_id"`
	Symbol    *string   `gorm:"type:varchar(20)" json:"symbol"`
	Price     *float64  `gorm:"type:decimal(20,8)" json:"price"`
}

func (PriceRecord) TableName() string { return "price_log" }

// Manager 持久化网关。引擎和仪表盘各自持有独立实例，
// 不跨进程共享连接。
type Manager struct {
	db          *gorm.DB
	redisClient *redis.Client
	useRedis    bool
}

// NewManager 连接MySQL并迁移表结构，Redis可选
func NewManager(mysqlConfig types.MySQLConfig, redisConfig types.RedisConfig) (*Manager, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		mysqlConfig.Username,
		mysqlConfig.Password,
		mysqlConfig.Host,
		mysqlConfig.Port,
		mysqlConfig.Database,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 生产环境使用Silent
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库实例失败: %v", err)
	}

	sqlDB.SetMaxIdleConns(mysqlConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(mysqlConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	m := &Manager{db: db}

	if err := db.AutoMigrate(&CoinRecord{}, &MessageRecord{}, &PriceRecord{}); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %v", err)
	}

	zap.L().Info("✅ MySQL数据库连接成功",
		zap.String("host", mysqlConfig.Host),
		zap.Int("port", mysqlConfig.Port),
		zap.String("database", mysqlConfig.Database))

	// 尝试连接Redis
	if redisConfig.URL != "" {
		m.redisClient = redis.NewClient(&redis.Options{
			Addr:     redisConfig.URL,
			Password: redisConfig.Password,
			DB:       redisConfig.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := m.redisClient.Ping(ctx).Result(); err != nil {
			zap.L().Warn("⚠️ Redis连接失败，播报缓存不可用", zap.Error(err))
			m.useRedis = false
		} else {
			zap.L().Info("✅ Redis连接成功")
			m.useRedis = true
		}
	} else {
		zap.L().Info("🔧 未配置Redis，播报缓存不可用")
	}

	return m, nil
}

// LoadWatchSet 按插入顺序读取全部币种
func (m *Manager) LoadWatchSet() ([]types.CoinSnapshot, error) {
	var records []CoinRecord
	if err := m.db.Order("created_at asc, id asc").Find(&records).Error; err != nil {
		return nil, m.fail("读取币种表", err)
	}

	snaps := make([]types.CoinSnapshot, 0, len(records))
	for _, r := range records {
		snaps = append(snaps, types.CoinSnapshot{
			ID:            r.ID,
			Symbol:        r.Symbol,
			Price:         r.Price,
			PricePrevious: r.PricePrevious,
			InMessage:     r.InMessage,
			LastUpdated:   r.LastUpdated,
		})
	}

	return snaps, nil
}

// PersistWatchSet 在一个事务内回写刷新结果。只更新已存在的id，
// 新增/删除币种是仪表盘的职权；in_message 不在更新列内。
func (m *Manager) PersistWatchSet(snaps []types.CoinSnapshot) error {
	err := m.db.Transaction(func(tx *gorm.DB) error {
		// 重新确认存活的id，期间可能有币种被删除
		var ids []string
		if err := tx.Model(&CoinRecord{}).Pluck("id", &ids).Error; err != nil {
			return err
		}
		alive := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			alive[id] = struct{}{}
		}

		for _, snap := range snaps {
			if _, ok := alive[snap.ID]; !ok {
				continue
			}

			// map形式的Updates才能把nil写成NULL
			updates := map[string]interface{}{
				"symbol":         snap.Symbol,
				"price":          snap.Price,
				"price_previous": snap.PricePrevious,
				"last_updated":   snap.LastUpdated,
			}
			if err := tx.Model(&CoinRecord{}).Where("id = ?", snap.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return m.fail("回写币种表", err)
	}
	return nil
}

// AppendLogEntry 追加一条播报日志
func (m *Manager) AppendLogEntry(timestamp time.Time, text string) error {
	record := MessageRecord{Timestamp: timestamp, Message: text}
	if err := m.db.Create(&record).Error; err != nil {
		return m.fail("写入播报日志", err)
	}
	return nil
}

// ListWatchedIDs 返回当前全部币种id
func (m *Manager) ListWatchedIDs() ([]string, error) {
	var ids []string
	if err := m.db.Model(&CoinRecord{}).Order("created_at asc, id asc").Pluck("id", &ids).Error; err != nil {
		return nil, m.fail("读取币种id", err)
	}
	return ids, nil
}

// AddCurrency 仪表盘操作：新增币种，已存在则忽略
func (m *Manager) AddCurrency(id string) error {
	if id == "" {
		return nil
	}

	var count int64
	if err := m.db.Model(&CoinRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return m.fail("检查币种是否存在", err)
	}
	if count > 0 {
		return nil
	}

	record := CoinRecord{ID: id, InMessage: false}
	if err := m.db.Create(&record).Error; err != nil {
		return m.fail("新增币种", err)
	}
	return nil
}

// DeleteCurrency 仪表盘操作：删除币种
func (m *Manager) DeleteCurrency(id string) error {
	if err := m.db.Where("id = ?", id).Delete(&CoinRecord{}).Error; err != nil {
		return m.fail("删除币种", err)
	}
	return nil
}

// SetInMessage 仪表盘操作：切换币种是否进入播报
func (m *Manager) SetInMessage(id string, inMessage bool) error {
	if err := m.db.Model(&CoinRecord{}).Where("id = ?", id).
		Update("in_message", inMessage).Error; err != nil {
		return m.fail("更新in_message", err)
	}
	return nil
}

// ReadMessageLog 仪表盘操作：按时间倒序读取播报日志
func (m *Manager) ReadMessageLog(limit int) ([]types.MessageEntry, error) {
	var records []MessageRecord
	if err := m.db.Order("timestamp desc, id desc").Limit(limit).Find(&records).Error; err != nil {
		return nil, m.fail("读取播报日志", err)
	}

	entries := make([]types.MessageEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, types.MessageEntry{Timestamp: r.Timestamp, Message: r.Message})
	}
	return entries, nil
}

// SavePriceLog 仪表盘操作：把当前全部币种价格存入历史表
func (m *Manager) SavePriceLog(timestamp time.Time) error {
	snaps, err := m.LoadWatchSet()
	if err != nil {
		return err
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		for _, snap := range snaps {
			record := PriceRecord{
				Timestamp: timestamp,
				CoinID:    snap.ID,
				Symbol:    snap.Symbol,
				Price:     snap.Price,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return m.fail("写入价格历史", err)
	}
	return nil
}

// CacheAnnouncement 把最新播报写入Redis，尽力而为，失败只记日志
func (m *Manager) CacheAnnouncement(timestamp time.Time, text string) {
	if !m.useRedis {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	payload, err := json.Marshal(types.MessageEntry{Timestamp: timestamp, Message: text})
	if err != nil {
		zap.L().Warn("序列化播报内容失败", zap.Error(err))
		return
	}

	if err := m.redisClient.Set(ctx, announcementKey, payload, 24*time.Hour).Err(); err != nil {
		zap.L().Warn("Redis缓存播报失败", zap.Error(err))
	}
}

// LatestAnnouncement 读取缓存的最新播报，没有或Redis不可用时ok为false
func (m *Manager) LatestAnnouncement() (types.MessageEntry, bool) {
	if !m.useRedis {
		return types.MessageEntry{}, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	payload, err := m.redisClient.Get(ctx, announcementKey).Bytes()
	if err != nil {
		return types.MessageEntry{}, false
	}

	var entry types.MessageEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return types.MessageEntry{}, false
	}
	return entry, true
}

// fail 持久化失败时防御性关闭连接，避免连接残留锁，错误继续上抛
func (m *Manager) fail(op string, err error) error {
	zap.L().Error("❌ 持久化操作失败，关闭数据库连接",
		zap.String("op", op), zap.Error(err))
	if closeErr := m.Close(); closeErr != nil {
		zap.L().Warn("关闭数据库连接失败", zap.Error(closeErr))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Close 关闭数据库和Redis连接
func (m *Manager) Close() error {
	if m.redisClient != nil {
		_ = m.redisClient.Close()
		m.useRedis = false
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连接健康状态
func (m *Manager) Health() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
