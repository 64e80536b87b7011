package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"fulfillment/internal/pkg/mq"
	"fulfillment/internal/service/order/port"
)

const eventTypeOrderCreated = "ORDER_CREATED"

// OrderExportKafkaAdapter 实现了 port.OrderExporter，把订单快照写入导出主题。
type OrderExportKafkaAdapter struct {
	writer mq.Writer
}

// NewOrderExportKafkaAdapter 创建导出适配器，writer 通常是 *kafka.Writer。
func NewOrderExportKafkaAdapter(writer mq.Writer) *OrderExportKafkaAdapter {
	return &OrderExportKafkaAdapter{writer: writer}
}

// Notify 以订单号为消息 key，同一订单的消息落在同一分区。
func (a *OrderExportKafkaAdapter) Notify(ctx context.Context, snapshot port.OrderSnapshot) error {
	eventBytes, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal order snapshot: %w", err)
	}
	key := []byte(strconv.FormatInt(snapshot.OrderID, 10))
	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	if err := mq.ProduceMessage(ctx, a.writer, key, eventBytes, kafka.Header{Key: "event-type", Value: []byte(eventTypeOrderCreated)}); err != nil {
		return fmt.Errorf("failed to produce order export message: %w", err)
	}
	return nil
}

// Close 关闭底层的 writer。
func (a *OrderExportKafkaAdapter) Close() error {
	if c, ok := a.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
