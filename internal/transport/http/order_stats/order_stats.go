package orderstats

import (
	"context"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/response"
)

type service interface {
	Stats(ctx context.Context) (*order.Stats, error)
}

type methodStats struct {
	Method string  `json:"method"`
	Count  int64   `json:"count"`
	Total  float64 `json:"total"`
}

type statsResponse struct {
	TotalOrders     int64         `json:"totalOrders"`
	PendingOrders   int64         `json:"pendingOrders"`
	PaidOrders      int64         `json:"paidOrders"`
	CompletedOrders int64         `json:"completedOrders"`
	TotalSales      float64       `json:"totalSales"`
	PaymentMethods  []methodStats `json:"paymentMethods"`
}

func newStatsResponse(s *order.Stats) statsResponse {
	methods := make([]methodStats, 0, len(s.PaymentMethods))
	for _, m := range s.PaymentMethods {
		methods = append(methods, methodStats{
			Method: string(m.Method),
			Count:  m.Count,
			Total:  m.Total.Round(2).InexactFloat64(),
		})
	}

	return statsResponse{
		TotalOrders:     s.TotalOrders,
		PendingOrders:   s.PendingOrders,
		PaidOrders:      s.PaidOrders,
		CompletedOrders: s.CompletedOrders,
		TotalSales:      s.TotalSales.Round(2).InexactFloat64(),
		PaymentMethods:  methods,
	}
}

// OrderStats returns dashboard aggregates.
func OrderStats(w http.ResponseWriter, r *http.Request, service service) {
	stats, err := service.Stats(r.Context())
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.OK(w, map[string]any{
		"stats":     newStatsResponse(stats),
		"updatedAt": time.Now().UTC(),
	})
}
