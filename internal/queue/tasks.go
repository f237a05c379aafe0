package queue

import (
	"encoding/json"

	"github.com/cartline-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCartChanged 购物车内容变更通知任务
	TaskCartChanged = constants.TaskCartChanged
	// TaskCartConsolidate 购物车归并任务
	TaskCartConsolidate = constants.TaskCartConsolidate
)

// CartChangedPayload 购物车变更通知载荷
type CartChangedPayload struct {
	CartID    uint   `json:"cart_id"`
	Token     string `json:"token"`
	ItemCount int64  `json:"item_count"`
}

// CartConsolidatePayload 购物车归并任务载荷
type CartConsolidatePayload struct {
	UserID      uint   `json:"user_id,omitempty"`
	AnonymousID string `json:"anonymous_id,omitempty"`
}

// NewCartChangedTask 创建购物车变更通知任务
func NewCartChangedTask(payload CartChangedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCartChanged, body), nil
}

// NewCartConsolidateTask 创建购物车归并任务
func NewCartConsolidateTask(payload CartConsolidatePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCartConsolidate, body), nil
}
