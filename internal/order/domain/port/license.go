package port

import (
	"context"

	"github.com/google/uuid"
)

// LicenseService 是许可证服务的出站端口。
type LicenseService interface {
	// Issue 为商品签发许可证，返回许可证 ID。
	Issue(ctx context.Context, productCode string) (uuid.UUID, error)

	// Revoke 吊销一张已签发的许可证。
	Revoke(ctx context.Context, licenseID uuid.UUID) error
}
