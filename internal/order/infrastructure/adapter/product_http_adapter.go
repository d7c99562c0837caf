package adapter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"oms/internal/order/domain"
	"oms/internal/pkg/httpclient"
)

// PriceCache 是报价缓存需要的 Redis 命令子集，*redis.Client 直接满足。
type PriceCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// ProductHTTPAdapter 实现了 port.ProductService。
// PriceOf 前置一层短 TTL 的 Redis 缓存，缓存不可用时直接回源；
// FreshPriceOf 永远回源，可售性检查不会被缓存命中跳过。
type ProductHTTPAdapter struct {
	client   *httpclient.Client
	baseURL  string
	cache    PriceCache // 可为 nil，表示不启用缓存
	cacheTTL time.Duration
}

func NewProductHTTPAdapter(client *httpclient.Client, baseURL string, cache PriceCache, cacheTTL time.Duration) *ProductHTTPAdapter {
	return &ProductHTTPAdapter{client: client, baseURL: baseURL, cache: cache, cacheTTL: cacheTTL}
}

type productResponse struct {
	ProductCode string          `json:"productCode"`
	Price       decimal.Decimal `json:"price"`
	Available   bool            `json:"available"`
}

// PriceOf 先查缓存。命中返回的报价最多落后 cacheTTL，
// 只用于加行项目这类随后还会重新锁价的路径。
func (a *ProductHTTPAdapter) PriceOf(ctx context.Context, productCode string) (decimal.Decimal, error) {
	if a.cache != nil {
		if cached, err := a.cache.Get(ctx, cacheKey(productCode)).Result(); err == nil {
			if price, parseErr := decimal.NewFromString(cached); parseErr == nil {
				return price, nil
			}
		}
	}
	return a.FreshPriceOf(ctx, productCode)
}

// FreshPriceOf 直接询问目录服务，并刷新缓存。
func (a *ProductHTTPAdapter) FreshPriceOf(ctx context.Context, productCode string) (decimal.Decimal, error) {
	var resp productResponse
	status, err := a.client.DoJSON(ctx, http.MethodGet, a.baseURL+"/products/"+productCode, nil, &resp)
	if err != nil {
		return decimal.Zero, domain.ErrAdapterFailure("product.priceOf", err)
	}
	switch {
	case status == http.StatusNotFound:
		return decimal.Zero, domain.ErrProductUnavailable(productCode)
	case status != http.StatusOK:
		return decimal.Zero, domain.ErrAdapterFailure("product.priceOf", fmt.Errorf("unexpected status %d", status))
	}
	if !resp.Available {
		return decimal.Zero, domain.ErrProductUnavailable(productCode)
	}

	// 只缓存可售商品的报价；写失败不影响主流程。
	if a.cache != nil {
		if err := a.cache.Set(ctx, cacheKey(productCode), resp.Price.String(), a.cacheTTL).Err(); err != nil {
			log.Debug().Err(err).Str("product_code", productCode).Msg("price cache write failed")
		}
	}
	return resp.Price, nil
}

func cacheKey(productCode string) string {
	return "product:price:" + productCode
}
