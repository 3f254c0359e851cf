package service

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"

	"lucky10-server/common/constant"
	"lucky10-server/common/logger"
	infmysql "lucky10-server/internal/infra/mysql"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	os.Exit(m.Run())
}

// newSchedulerMock 用 sqlmock 替换全局库句柄，验证调度 SQL 序列
func newSchedulerMock(t *testing.T) (sqlmock.Sqlmock, func()) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	db := sqlx.NewDb(raw, "mysql")
	infmysql.UseDB(db)
	return mock, func() { _ = db.Close() }
}

var (
	roundsQueryRe = regexp.MustCompile(`SELECT (.+) FROM game_rounds`).String()
	activeCountRe = regexp.QuoteMeta("SELECT COUNT(1) FROM game_rounds")
)

// 已有开放回合时拒绝创建，开放回合必须唯一
func TestCreateRoundRejectedWhileRoundOpen(t *testing.T) {
	mock, closeFn := newSchedulerMock(t)
	defer closeFn()

	mock.ExpectBegin()
	mock.ExpectQuery(activeCountRe).
		WithArgs(constant.RoundStatusPending, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(1)"}).AddRow(1))
	mock.ExpectRollback()

	svc := NewSchedulerService(NewDrawService())
	num, err := svc.CreateRound(context.Background(), "admin", "t-create-guard")
	if !errors.Is(err, ErrNoActionNeeded) {
		t.Fatalf("CreateRound err = %v, want ErrNoActionNeeded", err)
	}
	if num != 0 {
		t.Fatalf("CreateRound num = %d, want 0", num)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// 无到期回合且已有开放回合：巡检是正常的成功空跑，不报错
// 同时验证巡检会扫描滞留在开奖中的回合
func TestAutoManageRoundsQuietPass(t *testing.T) {
	mock, closeFn := newSchedulerMock(t)
	defer closeFn()

	mock.ExpectQuery(roundsQueryRe).
		WithArgs(constant.RoundStatusDrawing, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(roundsQueryRe).
		WithArgs(constant.RoundStatusPending, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(activeCountRe).
		WithArgs(constant.RoundStatusPending, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(1)"}).AddRow(1))

	svc := NewSchedulerService(NewDrawService())
	res := svc.AutoManageRounds(context.Background(), "manual")
	if !res.Success {
		t.Fatalf("AutoManageRounds success = false, errors = %v", res.Errors)
	}
	if len(res.Actions) != 0 {
		t.Fatalf("AutoManageRounds actions = %v, want empty", res.Actions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// 巡检判定需要建回合后、建回合事务内发现已被并发触发方建好：记为 skipped 而非失败
func TestAutoManageRoundsCreateRaceSkipped(t *testing.T) {
	mock, closeFn := newSchedulerMock(t)
	defer closeFn()

	mock.ExpectQuery(roundsQueryRe).
		WithArgs(constant.RoundStatusDrawing, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(roundsQueryRe).
		WithArgs(constant.RoundStatusPending, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(activeCountRe).
		WithArgs(constant.RoundStatusPending, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(1)"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectQuery(activeCountRe).
		WithArgs(constant.RoundStatusPending, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(1)"}).AddRow(1))
	mock.ExpectRollback()

	svc := NewSchedulerService(NewDrawService())
	res := svc.AutoManageRounds(context.Background(), "scheduler")
	if !res.Success {
		t.Fatalf("AutoManageRounds success = false, errors = %v", res.Errors)
	}
	if len(res.Actions) != 1 || res.Actions[0].Action != "skipped" {
		t.Fatalf("AutoManageRounds actions = %v, want single skipped", res.Actions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
