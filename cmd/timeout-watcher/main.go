// cmd/timeout-watcher/main.go
package main

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/infrastructure"
	"orderflow/internal/service/order/infrastructure/adapter"
)

const (
	serviceName  = "timeout-watcher"
	pollInterval = time.Minute
	batchSize    = 100
)

var tracer = otel.Tracer(serviceName)

// Watcher 定期巡检超时未推进的 PENDING 订单，把它们作为超时上报
// 写入 failure-reports 主题，由订单服务消费后取消并补偿。
type Watcher struct {
	repo     *infrastructure.GormOrderRepository
	reporter *adapter.FailureReportKafkaAdapter
	timeout  time.Duration
}

// StartPolling 启动定时巡检，直到 ctx 取消。
func (w *Watcher) StartPolling(ctx context.Context) error {
	logger.Logger().Info().
		Dur("interval", pollInterval).
		Dur("pendingTimeout", w.timeout).
		Msg("Timeout watcher started.")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)
		case <-ctx.Done():
			logger.Logger().Info().Msg("Timeout watcher shutting down.")
			return nil
		}
	}
}

func (w *Watcher) sweep(parentCtx context.Context) {
	ctx, span := tracer.Start(parentCtx, "watcher.Sweep", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	cutoff := time.Now().Add(-w.timeout)
	orderNos, err := w.repo.FindPendingBefore(ctx, cutoff, batchSize)
	if err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Msg("Failed to query stale pending orders.")
		return
	}
	span.SetAttributes(attribute.Int("stale.count", len(orderNos)))
	if len(orderNos) == 0 {
		return
	}

	for _, orderNo := range orderNos {
		report := &domain.FailureReport{
			OrderNo: orderNo,
			Reason:  "order stuck in PENDING beyond the allowed window",
			Timeout: true,
			At:      time.Now(),
		}
		if err := w.reporter.PublishFailureReport(ctx, report); err != nil {
			// 发布失败留给下一轮巡检重试
			logger.Ctx(ctx).Error().Err(err).Str("order", orderNo).
				Msg("Failed to publish timeout report.")
			continue
		}
		logger.Ctx(ctx).Warn().Str("order", orderNo).Msg("Stale PENDING order reported.")
	}
}

func main() {
	bootstrap.Init(serviceName)
	cfg := bootstrap.GetCurrentConfig()
	log := logger.Logger()

	db, err := infrastructure.OpenMysql(cfg.App.MysqlDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}

	writer := mq.NewKafkaWriter(cfg.App.KafkaBrokers, cfg.App.Topics.FailureReports)
	defer writer.Close()

	watcher := &Watcher{
		repo:     infrastructure.NewGormOrderRepository(db),
		reporter: adapter.NewFailureReportKafkaAdapter(writer),
		timeout:  cfg.App.Order.PendingTimeout,
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8094,
		Runners: []func(ctx context.Context) error{
			watcher.StartPolling,
		},
	})
}
