package repository

// OwnerFilter 按归属身份查询购物车的过滤条件
// UserID 与 AnonymousID 二选一；Status 为空表示不限状态。
type OwnerFilter struct {
	UserID      uint
	AnonymousID string
	Status      string
}

// IsZero 是否为空过滤条件
func (f OwnerFilter) IsZero() bool {
	return f.UserID == 0 && f.AnonymousID == ""
}

// ProductListFilter 查询商品列表的过滤条件
type ProductListFilter struct {
	Page       int
	PageSize   int
	Search     string
	OnlyActive bool
}
