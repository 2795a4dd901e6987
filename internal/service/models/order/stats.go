package order

import "github.com/shopspring/decimal"

// Stats summarizes the ledger for the admin dashboard.
type Stats struct {
	TotalOrders     int64           `json:"totalOrders"`
	PendingOrders   int64           `json:"pendingOrders"`
	PaidOrders      int64           `json:"paidOrders"`
	CompletedOrders int64           `json:"completedOrders"`
	TotalSales      decimal.Decimal `json:"totalSales"`
	PaymentMethods  []MethodStats   `json:"paymentMethods"`
}

// MethodStats aggregates orders per payment method.
type MethodStats struct {
	Method PaymentMethod   `json:"method"`
	Count  int64           `json:"count"`
	Total  decimal.Decimal `json:"total"`
}
