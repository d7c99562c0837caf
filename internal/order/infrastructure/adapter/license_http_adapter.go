package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"oms/internal/order/domain"
	"oms/internal/pkg/httpclient"
)

// LicenseHTTPAdapter 实现了 port.LicenseService。
type LicenseHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

func NewLicenseHTTPAdapter(client *httpclient.Client, baseURL string) *LicenseHTTPAdapter {
	return &LicenseHTTPAdapter{client: client, baseURL: baseURL}
}

type createLicenseRequest struct {
	LicenseID   uuid.UUID `json:"licenseId"`
	ProductCode string    `json:"productCode"`
}

type createLicenseResponse struct {
	LicenseID uuid.UUID `json:"licenseId"`
}

func (a *LicenseHTTPAdapter) Issue(ctx context.Context, productCode string) (uuid.UUID, error) {
	req := createLicenseRequest{LicenseID: uuid.New(), ProductCode: productCode}

	var resp createLicenseResponse
	status, err := a.client.DoJSON(ctx, http.MethodPost, a.baseURL+"/licenses", req, &resp)
	if err != nil {
		return uuid.Nil, domain.ErrAdapterFailure("license.issue", err)
	}
	if status < 200 || status >= 300 {
		return uuid.Nil, domain.ErrAdapterFailure("license.issue", fmt.Errorf("unexpected status %d", status))
	}
	return resp.LicenseID, nil
}

func (a *LicenseHTTPAdapter) Revoke(ctx context.Context, licenseID uuid.UUID) error {
	status, err := a.client.DoJSON(ctx, http.MethodDelete, a.baseURL+"/licenses/"+licenseID.String(), nil, nil)
	if err != nil {
		return domain.ErrAdapterFailure("license.revoke", err)
	}
	if status < 200 || status >= 300 {
		return domain.ErrAdapterFailure("license.revoke", fmt.Errorf("unexpected status %d", status))
	}
	return nil
}
