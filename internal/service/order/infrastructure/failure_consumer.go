// internal/service/order/infrastructure/failure_consumer.go
package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
)

// FailureConsumer 是驱动适配器：监听 failure-reports 主题，
// 把错误/超时上报转交给协调器的失败回调。
type FailureConsumer struct {
	reader      *kafka.Reader
	coordinator *application.Coordinator
	wg          sync.WaitGroup
	stopped     bool
}

func NewFailureConsumer(reader *kafka.Reader, coordinator *application.Coordinator) *FailureConsumer {
	return &FailureConsumer{
		reader:      reader,
		coordinator: coordinator,
	}
}

// Start 启动消费循环，长期运行直到 ctx 取消或 Stop 被调用。
func (c *FailureConsumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Logger().Info().
			Str("topic", c.reader.Config().Topic).
			Msg("Failure consumer started.")
		for {
			if c.stopped {
				return
			}
			// FetchMessage 而非 ReadMessage，便于手动控制提交与退出
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Logger().Info().Msg("Failure consumer shutting down.")
					return
				}
				logger.Logger().Error().Err(err).Msg("Failed to fetch failure report, retrying.")
				time.Sleep(time.Second)
				continue
			}

			c.processMessage(ctx, msg)

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Logger().Error().Err(err).Msg("Failed to commit failure report offset.")
			}
		}
	}()
}

// Stop 优雅停止消费者。
func (c *FailureConsumer) Stop() {
	c.stopped = true
	c.reader.Close()
	c.wg.Wait()
	logger.Logger().Info().Msg("Failure consumer stopped.")
}

func (c *FailureConsumer) processMessage(parentCtx context.Context, msg kafka.Message) {
	var report domain.FailureReport
	if err := json.Unmarshal(msg.Value, &report); err != nil {
		// 消息损坏只能跳过，生产环境应转入死信队列
		logger.Logger().Error().Err(err).Msg("Failed to unmarshal failure report, skipping message.")
		return
	}

	ctx := mq.ExtractTraceContext(parentCtx, msg.Headers)

	var err error
	if report.Timeout {
		err = c.coordinator.TimeoutCallback(ctx, report.OrderNo)
	} else {
		err = c.coordinator.ErrorCallback(ctx, report.OrderNo, report.Reason)
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("order", report.OrderNo).
			Msg("Failed to handle failure report.")
	}
}
