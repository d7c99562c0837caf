package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Client 是一个可追踪的、可注入的 JSON HTTP 客户端。
type Client struct {
	tracer     trace.Tracer
	httpClient *http.Client
}

// NewClient 创建一个新的客户端实例。不设置全局 Timeout，
// 超时完全由每次请求传入的 context 控制。
func NewClient(tracer trace.Tracer) *Client {
	return &Client{
		tracer: tracer,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
	}
}

// DoJSON 发送一次 JSON 请求。body 和 out 均可为 nil；
// 2xx 时将响应体解码进 out。返回 HTTP 状态码，由调用方映射为业务错误。
func (c *Client) DoJSON(ctx context.Context, method, rawURL string, body, out any) (int, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return 0, errors.Wrap(err, "parse service url")
	}

	spanName := fmt.Sprintf("call-%s", parsedURL.Hostname())
	ctx, span := c.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			return 0, errors.Wrap(err, "marshal request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	span.SetAttributes(
		attribute.String("http.url", rawURL),
		attribute.String("http.method", method),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				span.RecordError(err)
				return resp.StatusCode, errors.Wrap(err, "decode response body")
			}
		}
		return resp.StatusCode, nil
	}

	// 非 2xx 的业务含义由适配器解释，这里只排空连接。
	io.Copy(io.Discard, resp.Body)
	span.SetStatus(codes.Error, resp.Status)
	return resp.StatusCode, nil
}
