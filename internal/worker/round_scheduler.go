package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"lucky10-server/common/helper"
	"lucky10-server/common/logger"
	"lucky10-server/internal/config"
	"lucky10-server/internal/service"
)

// StartRoundScheduler 启动回合调度器：周期性巡检到期回合并开奖结算，
// 随后保证存在一个进行中的回合。多实例部署时依赖 CAS 抢占与唯一索引兜底，
// 同一回合只会被一个实例结算，其余实例得到 skipped。
func StartRoundScheduler(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	sched := service.NewSchedulerService(service.NewDrawService())

	go func() {
		defer wg.Done()

		// 启动时加入随机抖动，避免多实例同一时刻扎堆巡检
		jitter := time.Duration(helper.GenerateRandNum(0, 3000)) * time.Millisecond
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter):
		}

		// 启动即跑一遍，尽快恢复崩溃前遗留的开奖中回合
		runSchedulerPass(ctx, sched)

		ticker := time.NewTicker(config.SchedulerInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info("[scheduler] stopped")
				return
			case <-ticker.C:
				runSchedulerPass(ctx, sched)
			}
		}
	}()
}

func runSchedulerPass(ctx context.Context, sched service.SchedulerService) {
	c, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res := sched.AutoManageRounds(c, "scheduler")
	if !res.Success {
		logger.Warn("[scheduler] pass finished with errors",
			zap.Strings("errors", res.Errors),
			zap.Int("actions", len(res.Actions)))
		return
	}
	for _, a := range res.Actions {
		if a.Action == "skipped" {
			continue
		}
		logger.Info("[scheduler] action",
			zap.String("action", a.Action),
			zap.Int64("round_number", a.RoundNumber),
			zap.String("detail", a.Detail))
	}
}
