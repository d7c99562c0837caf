package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// ProductService 是商品目录服务的出站端口。
type ProductService interface {
	// PriceOf 返回商品当前报价；商品不可售时返回 KindProductUnavailable。
	// 实现允许短暂缓存结果。
	PriceOf(ctx context.Context, productCode string) (decimal.Decimal, error)
	// FreshPriceOf 绕过任何缓存直接询问目录。下单锁价用它来捕捉
	// 商品在 CREATED 期间下架或改价的情况。
	FreshPriceOf(ctx context.Context, productCode string) (decimal.Decimal, error)
}
