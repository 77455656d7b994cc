package cache

import "context"

// 各 stage 的 last-message 缓存键，每个键只由对应 stage 写入
const (
	KeyAggregation     = "aggregation_last_message"
	KeyTrainManagement = "train_management_last_message"
	KeyProcessing      = "processing_last_message"
	KeyTrainService    = "train_service_last_message"
	KeyTicketService   = "ticket_service_last_message"
	KeyPassenger       = "passenger_service_last_message"
	KeyNotification    = "notification_last_message"
)

// LastStateCache 记录各 stage 最近一次处理的消息，流水线本身只写不读
type LastStateCache interface {
	String() string
	SetLastValue(ctx context.Context, key string, value []byte) error
	Close() error
}
