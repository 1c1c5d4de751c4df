package datasource

// OHLCVRow mirrors the minimum `ohlcv` table spec.md §6 requires: one
// bar per (instrument_id, rtype, ts_event), prices scaled by 10^9,
// volumes non-negative integers. Populating this table is the job of
// the market-data ingestion utilities spec.md §1 places out of scope;
// this package only reads it.
type OHLCVRow struct {
	InstrumentID int64 `gorm:"column:instrument_id;primaryKey"`
	Rtype        int   `gorm:"column:rtype;primaryKey"`
	TsEvent      int64 `gorm:"column:ts_event;primaryKey"`
	Open         int64 `gorm:"column:open"`
	High         int64 `gorm:"column:high"`
	Low          int64 `gorm:"column:low"`
	Close        int64 `gorm:"column:close"`
	Volume       int64 `gorm:"column:volume"`
}

func (OHLCVRow) TableName() string { return "ohlcv" }

// priceScale converts a spec.md §6 integer price (scaled by 10^9) to a
// float64.
const priceScale = 1e9

func scaledToFloat(v int64) float64 { return float64(v) / priceScale }

// SymbologyRow resolves a ticker to an instrument_id over a half-open
// date interval [StartDate, EndDate); EndDate nil means the mapping is
// still open.
type SymbologyRow struct {
	InstrumentID int64  `gorm:"column:instrument_id;primaryKey"`
	Ticker       string `gorm:"column:ticker;primaryKey;index"`
	StartDate    int64  `gorm:"column:start_date;primaryKey"`
	EndDate      *int64 `gorm:"column:end_date"`
}

func (SymbologyRow) TableName() string { return "symbology" }
