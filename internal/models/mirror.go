package models

import "time"

// MirrorItem 客户端镜像缓存中的购物车项视图（仅建议性，永不作为金额依据）
type MirrorItem struct {
	ProductID uint   `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// MirrorView 客户端镜像缓存中的购物车摘要
type MirrorView struct {
	Token     string       `json:"token"`
	Items     []MirrorItem `json:"items"`
	ItemCount int64        `json:"item_count"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// MirrorItemsFromCartItems 从权威购物车项生成镜像视图项
func MirrorItemsFromCartItems(items []CartItem) []MirrorItem {
	result := make([]MirrorItem, 0, len(items))
	for _, item := range items {
		result = append(result, MirrorItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	return result
}
