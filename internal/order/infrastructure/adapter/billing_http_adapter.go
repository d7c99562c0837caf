package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"oms/internal/order/domain"
	"oms/internal/pkg/httpclient"
)

const operationTypeWithdraw = "WITHDRAW"

// BillingHTTPAdapter 实现了 port.BillingService。
type BillingHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

func NewBillingHTTPAdapter(client *httpclient.Client, baseURL string) *BillingHTTPAdapter {
	return &BillingHTTPAdapter{client: client, baseURL: baseURL}
}

type executeOperationRequest struct {
	Type    string          `json:"type"`
	Amount  decimal.Decimal `json:"amount"`
	Comment string          `json:"comment"`
}

type operationResponse struct {
	OperationID uuid.UUID `json:"operationId"`
}

func (a *BillingHTTPAdapter) Withdraw(ctx context.Context, amount decimal.Decimal, comment string) (uuid.UUID, error) {
	req := executeOperationRequest{Type: operationTypeWithdraw, Amount: amount, Comment: comment}

	var resp operationResponse
	status, err := a.client.DoJSON(ctx, http.MethodPost, a.baseURL+"/operation", req, &resp)
	if err != nil {
		return uuid.Nil, domain.ErrAdapterFailure("billing.withdraw", err)
	}
	switch {
	case status == http.StatusPaymentRequired:
		return uuid.Nil, domain.ErrInsufficientFunds(amount)
	case status != http.StatusOK:
		return uuid.Nil, domain.ErrAdapterFailure("billing.withdraw", fmt.Errorf("unexpected status %d", status))
	}
	return resp.OperationID, nil
}

func (a *BillingHTTPAdapter) CancelOperation(ctx context.Context, operationID uuid.UUID) error {
	status, err := a.client.DoJSON(ctx, http.MethodDelete, a.baseURL+"/operation/"+operationID.String(), nil, nil)
	if err != nil {
		return domain.ErrAdapterFailure("billing.cancelOperation", err)
	}
	if status < 200 || status >= 300 {
		return domain.ErrAdapterFailure("billing.cancelOperation", fmt.Errorf("unexpected status %d", status))
	}
	return nil
}
