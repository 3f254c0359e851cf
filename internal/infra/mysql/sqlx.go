package mysql

import (
	"github.com/jmoiron/sqlx"
)

// 全局 *sqlx.DB 句柄（由 UseDB 注入，common.InitDB 初始化）
var db *sqlx.DB

// 可选的从库句柄，查询接口优先使用
var slaveDB *sqlx.DB

// UseDB: 注入外部初始化好的 *sqlx.DB
func UseDB(d *sqlx.DB) {
	if d == nil {
		return
	}
	db = d
}

// UseSlaveDB: 注入从库句柄（可选）
func UseSlaveDB(d *sqlx.DB) {
	if d == nil {
		return
	}
	slaveDB = d
}

// SQLX 返回主库句柄
func SQLX() *sqlx.DB { return db }

// ReadDB 返回查询用句柄：从库未配置时退回主库
func ReadDB() *sqlx.DB {
	if slaveDB != nil {
		return slaveDB
	}
	return db
}
