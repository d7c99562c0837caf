package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusCreated   Status = "CREATED"   // 订单已创建，行项目仍可修改
	StatusPlaced    Status = "PLACED"    // 订单已下单，价格已锁定，等待支付
	StatusCompleted Status = "COMPLETED" // 已支付，许可证已签发（终态）
	StatusCanceled  Status = "CANCELED"  // 已取消（终态）
)

// Terminal 报告该状态是否为终态。
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}
