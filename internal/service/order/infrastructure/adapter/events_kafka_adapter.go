// internal/service/order/infrastructure/adapter/events_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/order/domain"
)

// OrderEventKafkaAdapter 是 port.OrderEventProducer 的 Kafka 实现。
// 消息以订单号为 key，保证同一订单的事件进同一分区、按序消费。
type OrderEventKafkaAdapter struct {
	writer *kafka.Writer
}

func NewOrderEventKafkaAdapter(writer *kafka.Writer) *OrderEventKafkaAdapter {
	return &OrderEventKafkaAdapter{writer: writer}
}

func (a *OrderEventKafkaAdapter) PublishOrderEvent(ctx context.Context, event *domain.OrderEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return mq.ProduceMessage(ctx, a.writer, []byte(event.OrderNo), value)
}

// FailureReportKafkaAdapter 把失败/超时上报写入 failure-reports 主题，
// 供超时巡检等不直接持有协调器的进程使用。
type FailureReportKafkaAdapter struct {
	writer *kafka.Writer
}

func NewFailureReportKafkaAdapter(writer *kafka.Writer) *FailureReportKafkaAdapter {
	return &FailureReportKafkaAdapter{writer: writer}
}

func (a *FailureReportKafkaAdapter) PublishFailureReport(ctx context.Context, report *domain.FailureReport) error {
	value, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return mq.ProduceMessage(ctx, a.writer, []byte(report.OrderNo), value)
}
