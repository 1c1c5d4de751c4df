package recorder

// RunRow is the `runs` table (spec.md §3 "Run record"): one row per
// orchestrator run, carrying the lifecycle status every event row
// foreign-keys against.
type RunRow struct {
	RunID    string `gorm:"column:run_id;primaryKey"`
	Name     string `gorm:"column:name"`
	TsStart  int64  `gorm:"column:ts_start"`
	TsEnd    *int64 `gorm:"column:ts_end"`
	Status   string `gorm:"column:status;index"`
	Config   string `gorm:"column:config;type:text"`
	Metadata string `gorm:"column:metadata;type:text"`
}

func (RunRow) TableName() string { return "runs" }

// common embeds the run_id foreign key and the two event timestamps
// every persisted row carries (spec.md §3).
type common struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"column:run_id;index;not null"`
	TsEvent   int64  `gorm:"column:ts_event"`
	TsCreated int64  `gorm:"column:ts_created"`
}

type BarReceivedRow struct {
	common
	Symbol    string  `gorm:"column:symbol;index"`
	BarPeriod string  `gorm:"column:bar_period"`
	Open      float64 `gorm:"column:open"`
	High      float64 `gorm:"column:high"`
	Low       float64 `gorm:"column:low"`
	Close     float64 `gorm:"column:close"`
	Volume    float64 `gorm:"column:volume"`
}

func (BarReceivedRow) TableName() string { return "bars" }

type BarProcessedRow struct {
	common
	Symbol     string  `gorm:"column:symbol;index"`
	BarPeriod  string  `gorm:"column:bar_period"`
	Open       float64 `gorm:"column:open"`
	High       float64 `gorm:"column:high"`
	Low        float64 `gorm:"column:low"`
	Close      float64 `gorm:"column:close"`
	Volume     float64 `gorm:"column:volume"`
	Indicators string  `gorm:"column:indicators;type:text"` // JSON-encoded {key: value}
}

func (BarProcessedRow) TableName() string { return "bars_processed" }

type OrderSubmissionRequestRow struct {
	common
	SystemOrderID string   `gorm:"column:system_order_id;index"`
	Symbol        string   `gorm:"column:symbol"`
	OrderType     string   `gorm:"column:order_type"`
	Side          string   `gorm:"column:side"`
	Quantity      float64  `gorm:"column:quantity"`
	LimitPrice    *float64 `gorm:"column:limit_price"`
	StopPrice     *float64 `gorm:"column:stop_price"`
	Action        string   `gorm:"column:action"`
	Signal        string   `gorm:"column:signal"`
}

func (OrderSubmissionRequestRow) TableName() string { return "order_submission_requests" }

type OrderCancellationRequestRow struct {
	common
	SystemOrderID string `gorm:"column:system_order_id;index"`
	Symbol        string `gorm:"column:symbol"`
}

func (OrderCancellationRequestRow) TableName() string { return "order_cancellation_requests" }

type OrderModificationRequestRow struct {
	common
	SystemOrderID string   `gorm:"column:system_order_id;index"`
	Symbol        string   `gorm:"column:symbol"`
	Quantity      *float64 `gorm:"column:quantity"`
	LimitPrice    *float64 `gorm:"column:limit_price"`
	StopPrice     *float64 `gorm:"column:stop_price"`
}

func (OrderModificationRequestRow) TableName() string { return "order_modification_requests" }

type OrderAcceptedRow struct {
	common
	SystemOrderID string `gorm:"column:system_order_id;index"`
	TsBroker      int64  `gorm:"column:ts_broker"`
	BrokerOrderID string `gorm:"column:broker_order_id"`
}

func (OrderAcceptedRow) TableName() string { return "order_accepted" }

type OrderRejectedRow struct {
	common
	SystemOrderID    string `gorm:"column:system_order_id;index"`
	TsBroker         int64  `gorm:"column:ts_broker"`
	RejectionReason  string `gorm:"column:rejection_reason"`
	RejectionMessage string `gorm:"column:rejection_message"`
}

func (OrderRejectedRow) TableName() string { return "order_rejected" }

type CancellationAcceptedRow struct {
	common
	SystemOrderID string `gorm:"column:system_order_id;index"`
	TsBroker      int64  `gorm:"column:ts_broker"`
}

func (CancellationAcceptedRow) TableName() string { return "cancellation_accepted" }

type CancellationRejectedRow struct {
	common
	SystemOrderID    string `gorm:"column:system_order_id;index"`
	TsBroker         int64  `gorm:"column:ts_broker"`
	RejectionReason  string `gorm:"column:rejection_reason"`
	RejectionMessage string `gorm:"column:rejection_message"`
}

func (CancellationRejectedRow) TableName() string { return "cancellation_rejected" }

type ModificationAcceptedRow struct {
	common
	SystemOrderID string `gorm:"column:system_order_id;index"`
	TsBroker      int64  `gorm:"column:ts_broker"`
}

func (ModificationAcceptedRow) TableName() string { return "modification_accepted" }

type ModificationRejectedRow struct {
	common
	SystemOrderID    string `gorm:"column:system_order_id;index"`
	TsBroker         int64  `gorm:"column:ts_broker"`
	RejectionReason  string `gorm:"column:rejection_reason"`
	RejectionMessage string `gorm:"column:rejection_message"`
}

func (ModificationRejectedRow) TableName() string { return "modification_rejected" }

type FillEventRow struct {
	common
	SystemOrderID  string  `gorm:"column:system_order_id;index"`
	FillID         string  `gorm:"column:fill_id;index"`
	Symbol         string  `gorm:"column:symbol;index"`
	Side           string  `gorm:"column:side"`
	QuantityFilled float64 `gorm:"column:quantity_filled"`
	FillPrice      float64 `gorm:"column:fill_price"`
	Commission     float64 `gorm:"column:commission"`
	Exchange       string  `gorm:"column:exchange"`
	TsBroker       int64   `gorm:"column:ts_broker"`
}

func (FillEventRow) TableName() string { return "fills" }

type OrderExpiredRow struct {
	common
	SystemOrderID string `gorm:"column:system_order_id;index"`
	Symbol        string `gorm:"column:symbol"`
	TsBroker      int64  `gorm:"column:ts_broker"`
}

func (OrderExpiredRow) TableName() string { return "order_expired" }

// allModels lists every model AutoMigrate must create.
var allModels = []any{
	&RunRow{},
	&BarReceivedRow{},
	&BarProcessedRow{},
	&OrderSubmissionRequestRow{},
	&OrderCancellationRequestRow{},
	&OrderModificationRequestRow{},
	&OrderAcceptedRow{},
	&OrderRejectedRow{},
	&CancellationAcceptedRow{},
	&CancellationRejectedRow{},
	&ModificationAcceptedRow{},
	&ModificationRejectedRow{},
	&FillEventRow{},
	&OrderExpiredRow{},
}
