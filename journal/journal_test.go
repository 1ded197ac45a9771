package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/market"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleTrade(id string, closeT time.Time, realized string) TradeRecord {
	return TradeRecord{
		TradeID:         id,
		Instrument:      "AAPL",
		Side:            market.Long,
		Units:           d("100"),
		EntryPrice:      d("150"),
		ExitPrice:       d("156"),
		OpenTime:        closeT.Add(-time.Hour),
		CloseTime:       closeT,
		EntryCommission: d("15"),
		ExitCommission:  d("15.6"),
		GrossPL:         d("600"),
		RealizedPL:      d(realized),
		Reason:          ReasonTrailingStop,
		Confidence:      0.75,
		SignalSource:    "scripted",
	}
}

func assertSameTrade(t interface {
	Errorf(string, ...any)
}, want, got TradeRecord) {
	if want.TradeID != got.TradeID || want.Instrument != got.Instrument || want.Side != got.Side ||
		!want.Units.Equal(got.Units) || !want.EntryPrice.Equal(got.EntryPrice) ||
		!want.ExitPrice.Equal(got.ExitPrice) || !want.OpenTime.Equal(got.OpenTime) ||
		!want.CloseTime.Equal(got.CloseTime) || !want.EntryCommission.Equal(got.EntryCommission) ||
		!want.ExitCommission.Equal(got.ExitCommission) || !want.GrossPL.Equal(got.GrossPL) ||
		!want.RealizedPL.Equal(got.RealizedPL) || want.Reason != got.Reason ||
		want.Confidence != got.Confidence || want.SignalSource != got.SignalSource {
		t.Errorf("trade mismatch:\nwant %+v\n got %+v", want, got)
	}
}
