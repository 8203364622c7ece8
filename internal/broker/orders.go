package broker

const (
	OrderTypeMarket       = "Market"
	OrderTypeLimit        = "Limit"
	OrderTypeStopIfTraded = "StopIfTraded"

	BuySide  = "Buy"
	SellSide = "Sell"

	DurationDay = "DayOrder"
	DurationGTC = "GoodTillCancel"
)

type OrderDuration struct {
	DurationType string `json:"DurationType"`
}

// OrderRequest is the venue's order payload. Attached protective orders go
// in Orders with OrderRelation set on the parent.
type OrderRequest struct {
	AccountKey    string         `json:"AccountKey,omitempty"`
	Uic           int            `json:"Uic,omitempty"`
	AssetType     string         `json:"AssetType,omitempty"`
	OrderType     string         `json:"OrderType,omitempty"`
	BuySell       string         `json:"BuySell,omitempty"`
	Amount        float64        `json:"Amount,omitempty"`
	OrderPrice    float64        `json:"OrderPrice,omitempty"`
	ManualOrder   bool           `json:"ManualOrder"`
	OrderDuration OrderDuration  `json:"OrderDuration"`
	OrderRelation string         `json:"OrderRelation,omitempty"`
	PositionID    string         `json:"PositionId,omitempty"`
	Orders        []OrderRequest `json:"Orders,omitempty"`
}

type OrderResponse struct {
	OrderID string          `json:"OrderId"`
	Orders  []OrderResponse `json:"Orders,omitempty"`
}
