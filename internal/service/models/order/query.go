package order

// QueryOrdersModel represents filter parameters for querying orders
type QueryOrdersModel struct {
	Ids    []string `json:"ids,omitempty"`
	Status Status   `json:"status,omitempty"`
	Email  string   `json:"email,omitempty"`
	Limit  int      `json:"limit,omitempty"`
	Offset int      `json:"offset,omitempty"`
}
