package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"lucky10-server/common/logger"
)

// Customers 用户表
// 用户唯一标识 = platform_id + platform_user_id
// total_bet / total_won 为累计投注与累计派彩，仅在扣款/派彩同一事务内更新
type Customers struct {
	ID             int64   `db:"user_id"`          // 自增ID（内部使用）
	PlatformID     int8    `db:"platform_id"`      // 平台ID
	PlatformUserID string  `db:"platform_user_id"` // 平台用户ID
	Username       string  `db:"username"`         // 用户名（可选）
	Balance        float64 `db:"balance"`          // 余额（非负）
	TotalBet       float64 `db:"total_bet"`        // 累计投注
	TotalWon       float64 `db:"total_won"`        // 累计派彩
	Status         int8    `db:"status"`           // 状态: 1=正常 0=禁用
	CreatedAt      int64   `db:"created_at"`       // 创建时间（13位毫秒时间戳）
	UpdatedAt      int64   `db:"updated_at"`       // 更新时间（13位毫秒时间戳）
}

const userColumns = `user_id, platform_id, platform_user_id, username, balance, total_bet, total_won, status, created_at, updated_at`

// GetUserByPlatformUser 根据平台ID和平台用户ID查询用户
func GetUserByPlatformUser(ctx context.Context, db *sqlx.DB, platformID int8, platformUserID string) (*Customers, error) {
	query := "SELECT " + userColumns + ` FROM customers
	          WHERE platform_id = ? AND platform_user_id = ?
	          LIMIT 1`

	var user Customers
	err := db.GetContext(ctx, &user, query, platformID, platformUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get user by platform user failed",
			zap.Int8("platform_id", platformID),
			zap.String("platform_user_id", platformUserID),
			zap.Error(err))
		return nil, err
	}

	return &user, nil
}

// GetUserByIDForUpdate 根据内部ID查询用户（加锁）
// 必须在事务中调用；结算批量派彩前按 user_id 升序逐个加锁，避免死锁
func GetUserByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, userID int64) (*Customers, error) {
	query := "SELECT " + userColumns + ` FROM customers
	          WHERE user_id = ?
	          FOR UPDATE`

	var user Customers
	err := sqlx.GetContext(ctx, exec, &user, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get user by id for update failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	return &user, nil
}

// GetUserByPlatformUserForUpdate 根据平台ID和平台用户ID查询用户（加锁）
// 必须在事务中调用
func GetUserByPlatformUserForUpdate(ctx context.Context, exec sqlx.ExtContext, platformID int8, platformUserID string) (*Customers, error) {
	query := "SELECT " + userColumns + ` FROM customers
	          WHERE platform_id = ? AND platform_user_id = ?
	          FOR UPDATE`

	var user Customers
	err := sqlx.GetContext(ctx, exec, &user, query, platformID, platformUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get user by platform user for update failed",
			zap.Int8("platform_id", platformID),
			zap.String("platform_user_id", platformUserID),
			zap.Error(err))
		return nil, err
	}

	return &user, nil
}

// Insert 插入用户
func (u *Customers) Insert(ctx context.Context, db *sqlx.DB) error {
	now := time.Now().UnixMilli()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `INSERT INTO customers (platform_id, platform_user_id, username, balance, total_bet, total_won, status, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := db.ExecContext(ctx, query,
		u.PlatformID, u.PlatformUserID, u.Username, u.Balance, u.TotalBet, u.TotalWon, u.Status, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		logger.Error("insert user failed",
			zap.Int8("platform_id", u.PlatformID),
			zap.String("platform_user_id", u.PlatformUserID),
			zap.Error(err))
		return err
	}

	id, _ := result.LastInsertId()
	u.ID = id

	logger.Info("user created",
		zap.Int64("id", u.ID),
		zap.Int8("platform_id", u.PlatformID),
		zap.String("platform_user_id", u.PlatformUserID),
		zap.String("username", u.Username))

	return nil
}

// DebitForBet 扣减余额并累计 total_bet（同一事务内，调用方已持行锁）
func DebitForBet(ctx context.Context, exec sqlx.ExtContext, userID int64, newBalance, betAmount float64) error {
	now := time.Now().UnixMilli()
	query := `UPDATE customers SET balance = ?, total_bet = total_bet + ?, updated_at = ? WHERE user_id = ?`

	_, err := exec.ExecContext(ctx, query, newBalance, betAmount, now, userID)
	if err != nil {
		logger.Error("debit user balance failed",
			zap.Int64("user_id", userID),
			zap.Float64("new_balance", newBalance),
			zap.Error(err))
	}
	return err
}

// CreditForPayout 派彩入账并累计 total_won（同一事务内，调用方已持行锁）
func CreditForPayout(ctx context.Context, exec sqlx.ExtContext, userID int64, newBalance, wonAmount float64) error {
	now := time.Now().UnixMilli()
	query := `UPDATE customers SET balance = ?, total_won = total_won + ?, updated_at = ? WHERE user_id = ?`

	_, err := exec.ExecContext(ctx, query, newBalance, wonAmount, now, userID)
	if err != nil {
		logger.Error("credit user balance failed",
			zap.Int64("user_id", userID),
			zap.Float64("new_balance", newBalance),
			zap.Error(err))
	}
	return err
}

// UpdateUserBalance 直接覆写余额（人工调账用）
func UpdateUserBalance(ctx context.Context, exec sqlx.ExtContext, userID int64, newBalance float64) error {
	now := time.Now().UnixMilli()
	query := `UPDATE customers SET balance = ?, updated_at = ? WHERE user_id = ?`

	_, err := exec.ExecContext(ctx, query, newBalance, now, userID)
	if err != nil {
		logger.Error("update user balance failed",
			zap.Int64("user_id", userID),
			zap.Float64("new_balance", newBalance),
			zap.Error(err))
	}
	return err
}

// GetOrCreateUser 获取或创建用户（自动注册）
func GetOrCreateUser(ctx context.Context, db *sqlx.DB, platformID int8, platformUserID, username string) (*Customers, error) {
	user, err := GetUserByPlatformUser(ctx, db, platformID, platformUserID)
	if err == nil {
		return user, nil
	}

	if err == sql.ErrNoRows {
		newUser := &Customers{
			PlatformID:     platformID,
			PlatformUserID: platformUserID,
			Username:       username,
			Balance:        0.00,
			Status:         1,
		}

		if err := newUser.Insert(ctx, db); err != nil {
			// 并发创建时唯一索引冲突，重新查询即可
			if isMySQLDuplicateKeyError(err) {
				logger.Info("concurrent user creation detected, retry query",
					zap.Int8("platform_id", platformID),
					zap.String("platform_user_id", platformUserID))
				return GetUserByPlatformUser(ctx, db, platformID, platformUserID)
			}
			return nil, err
		}

		return newUser, nil
	}

	return nil, err
}

// isMySQLDuplicateKeyError 判断是否为 MySQL 唯一键冲突错误（1062）
func isMySQLDuplicateKeyError(err error) bool {
	var my *mysql.MySQLError
	if errors.As(err, &my) {
		return my.Number == 1062
	}
	return false
}
