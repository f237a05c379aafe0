package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cartline-next/internal/logger"
	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/provider"
	"github.com/cartline-next/internal/queue"
	"github.com/cartline-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCartChanged, c.handleCartChanged)
	mux.HandleFunc(queue.TaskCartConsolidate, c.handleCartConsolidate)
}

// handleCartChanged 购物车变更后用权威存储刷新缓存镜像
func (c *Consumer) handleCartChanged(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_cart_changed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CartChangedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_cart_changed_unmarshal_failed", "error", err)
		return err
	}
	if payload.CartID == 0 {
		logger.Debugw("worker_cart_changed_skip_invalid_payload", "cart_id", payload.CartID)
		return nil
	}
	cart, err := c.CartRepo.GetByID(payload.CartID)
	if err != nil {
		logger.Warnw("worker_cart_changed_fetch_failed", "cart_id", payload.CartID, "error", err)
		return err
	}
	if cart == nil {
		logger.Debugw("worker_cart_changed_skip_cart_not_found", "cart_id", payload.CartID)
		return nil
	}
	if c.MirrorStore == nil {
		logger.Debugw("worker_cart_changed_skip_mirror_nil", "cart_id", payload.CartID)
		return nil
	}
	items, err := c.CartItemRepo.ListByCart(cart.ID)
	if err != nil {
		logger.Warnw("worker_cart_changed_list_items_failed", "cart_id", cart.ID, "error", err)
		return err
	}
	view := models.MirrorView{
		Token:     cart.Token,
		Items:     models.MirrorItemsFromCartItems(items),
		ItemCount: payload.ItemCount,
		UpdatedAt: cart.UpdatedAt,
	}
	if err := c.MirrorStore.PutView(ctx, view); err != nil {
		logger.Warnw("worker_cart_changed_mirror_put_failed", "cart_id", cart.ID, "error", err)
		return err
	}
	return nil
}

// handleCartConsolidate 合并同一归属下的重复活跃购物车
func (c *Consumer) handleCartConsolidate(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_cart_consolidate_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CartConsolidatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_cart_consolidate_unmarshal_failed", "error", err)
		return err
	}
	owner := service.OwnerKey{UserID: payload.UserID, AnonymousID: payload.AnonymousID}
	if owner.IsZero() {
		logger.Debugw("worker_cart_consolidate_skip_empty_owner")
		return nil
	}
	if c.Consolidation == nil {
		logger.Warnw("worker_cart_consolidate_skip_service_nil", "user_id", payload.UserID)
		return nil
	}
	if err := c.Consolidation.Consolidate(owner); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOwner):
			logger.Debugw("worker_cart_consolidate_skip_invalid_owner", "user_id", payload.UserID)
			return nil
		default:
			logger.Warnw("worker_cart_consolidate_failed",
				"user_id", payload.UserID,
				"anonymous_id", payload.AnonymousID,
				"error", err,
			)
			return err
		}
	}
	return nil
}
