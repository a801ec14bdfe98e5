package coin

import (
	"errors"
	"math"
	"testing"
	"time"

	"crypto-ticker-engine/pkg/types"
)

func floatPtr(f float64) *float64    { return &f }
func strPtr(s string) *string        { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"float", 1.2345, "1.23"},
		{"half to even down", 0.125, "0.12"},
		{"half to even up", 0.135, "0.14"},
		{"int", 5, "5.00"},
		{"numeric string", "1.2345", "1.23"},
		{"negative", -0.1, "-0.10"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FormatPrice(tc.value)
			if err != nil {
				t.Fatalf("FormatPrice(%v) error: %v", tc.value, err)
			}
			if got != tc.want {
				t.Errorf("FormatPrice(%v) = %q, want %q", tc.value, got, tc.want)
			}
		})
	}
}

func TestFormatPriceInvalid(t *testing.T) {
	if _, err := FormatPrice([]string{"invalid"}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for slice input, got %v", err)
	}
	if _, err := FormatPrice("not a number"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for non-numeric string, got %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	c := New("bitcoin")

	if c.ID() != "bitcoin" {
		t.Errorf("ID = %q", c.ID())
	}
	if c.Price() != nil || c.PricePrevious() != nil || c.PriceChange() != nil {
		t.Error("new coin should have no price state")
	}
	if c.PriceString() != NotFoundString || c.SymbolString() != NotFoundString {
		t.Errorf("placeholders: price=%q symbol=%q", c.PriceString(), c.SymbolString())
	}
	if c.ChangeString() != NotFoundString {
		t.Errorf("change placeholder = %q", c.ChangeString())
	}
	if c.ColourString() != ColourNeutral {
		t.Errorf("colour = %q, want neutral", c.ColourString())
	}
	if c.CheckboxString() != "" {
		t.Errorf("checkbox = %q, want empty", c.CheckboxString())
	}
}

func TestFromSnapshot(t *testing.T) {
	updated := time.Date(2020, 5, 26, 13, 0, 0, 0, time.UTC)
	c := FromSnapshot(types.CoinSnapshot{
		ID:            "bitcoin",
		Symbol:        strPtr("btc"),
		Price:         floatPtr(123.123),
		PricePrevious: floatPtr(123),
		InMessage:     true,
		LastUpdated:   timePtr(updated),
	})

	if c.PriceChange() == nil || !almostEqual(*c.PriceChange(), 0.123) {
		t.Fatalf("price change = %v, want 0.123", c.PriceChange())
	}
	if c.ChangeString() != "0.12" {
		t.Errorf("change string = %q", c.ChangeString())
	}
	if c.ColourString() != ColourUp {
		t.Errorf("colour = %q, want green", c.ColourString())
	}
	if c.CheckboxString() != "checked" {
		t.Errorf("checkbox = %q", c.CheckboxString())
	}
	if c.LastUpdated() == nil || !c.LastUpdated().Equal(updated) {
		t.Errorf("last updated = %v", c.LastUpdated())
	}
}

func TestSetPrice(t *testing.T) {
	c := New("bitcoin")

	// 无前值的首次观察，变化为0
	c.SetPrice(floatPtr(123.123), nil)
	if c.PriceString() != "123.12" {
		t.Errorf("price string = %q", c.PriceString())
	}
	if c.PriceChange() == nil || *c.PriceChange() != 0 {
		t.Errorf("first observation change = %v, want 0", c.PriceChange())
	}

	// 显式提供前值
	c.SetPrice(floatPtr(123.123), floatPtr(123))
	if c.PriceChange() == nil || !almostEqual(*c.PriceChange(), 0.123) {
		t.Errorf("change = %v, want 0.123", c.PriceChange())
	}
	if c.ChangeString() != "0.12" {
		t.Errorf("change string = %q", c.ChangeString())
	}
}

func TestSetPriceAbsentKeepsPrevious(t *testing.T) {
	c := New("bitcoin")
	c.SetPrice(floatPtr(123.123), floatPtr(123))

	// 价格缺失不会抹掉历史前值
	c.SetPrice(nil, nil)
	if c.Price() != nil {
		t.Error("price should be absent")
	}
	if c.PricePrevious() == nil || *c.PricePrevious() != 123 {
		t.Errorf("previous = %v, want 123 preserved", c.PricePrevious())
	}
	if c.PriceChange() != nil || c.ChangeString() != NotFoundString {
		t.Errorf("change = %v %q, want absent", c.PriceChange(), c.ChangeString())
	}
}

func TestRecordPrice(t *testing.T) {
	c := New("bitcoin")
	now := time.Now().UTC()

	c.RecordPrice(floatPtr(100), now)
	if c.PricePrevious() != nil {
		t.Errorf("previous after first record = %v, want nil", c.PricePrevious())
	}
	if c.PriceChange() == nil || *c.PriceChange() != 0 {
		t.Errorf("change after first record = %v, want 0", c.PriceChange())
	}
	if c.LastUpdated() == nil || !c.LastUpdated().Equal(now) {
		t.Errorf("last updated = %v", c.LastUpdated())
	}

	// 第二次刷新：当前价格推移为前值
	later := now.Add(time.Minute)
	c.RecordPrice(floatPtr(101.5), later)
	if c.PricePrevious() == nil || *c.PricePrevious() != 100 {
		t.Errorf("previous = %v, want 100", c.PricePrevious())
	}
	if c.PriceChange() == nil || !almostEqual(*c.PriceChange(), 1.5) {
		t.Errorf("change = %v, want 1.5", c.PriceChange())
	}

	// 刷新结果为缺失：历史照常推移
	c.RecordPrice(nil, later.Add(time.Minute))
	if c.Price() != nil {
		t.Error("price should be absent")
	}
	if c.PricePrevious() == nil || *c.PricePrevious() != 101.5 {
		t.Errorf("previous = %v, want 101.5", c.PricePrevious())
	}
	if c.PriceString() != NotFoundString {
		t.Errorf("price string = %q", c.PriceString())
	}
}

func TestColour(t *testing.T) {
	c := New("bitcoin")

	c.SetPrice(floatPtr(123.123), floatPtr(123))
	if c.ColourString() != ColourUp {
		t.Errorf("colour = %q, want green", c.ColourString())
	}

	c.SetPrice(floatPtr(123), floatPtr(123.1))
	if c.ColourString() != ColourDown {
		t.Errorf("colour = %q, want red", c.ColourString())
	}

	// 舍入后为0.00的微小变化不应变色
	c.SetPrice(floatPtr(100.001), floatPtr(100))
	if c.ColourString() != ColourNeutral {
		t.Errorf("colour for rounded-zero change = %q, want neutral", c.ColourString())
	}

	c.SetPrice(nil, nil)
	if c.ColourString() != ColourNeutral {
		t.Errorf("colour for absent price = %q, want neutral", c.ColourString())
	}
}

func TestSetSymbol(t *testing.T) {
	c := New("bitcoin")

	c.SetSymbol(nil)
	if c.SymbolString() != NotFoundString {
		t.Errorf("symbol string = %q", c.SymbolString())
	}

	c.SetSymbol(strPtr("btc"))
	if c.SymbolString() != "btc" {
		t.Errorf("symbol string = %q", c.SymbolString())
	}
}

func TestResolveSymbol(t *testing.T) {
	catalog := map[string]string{"bitcoin": "btc", "tron": "trx"}

	c := New("bitcoin")
	c.ResolveSymbol(catalog)
	if c.Symbol() == nil || *c.Symbol() != "btc" {
		t.Errorf("symbol = %v, want btc", c.Symbol())
	}

	// 已解析的不再覆盖
	c.SetSymbol(strPtr("custom"))
	c.ResolveSymbol(catalog)
	if *c.Symbol() != "custom" {
		t.Errorf("symbol = %q, resolved symbol should not be overwritten", *c.Symbol())
	}

	// 目录中不存在
	unknown := New("testing123")
	unknown.ResolveSymbol(catalog)
	if unknown.Symbol() != nil {
		t.Errorf("symbol = %v, want nil for unknown id", unknown.Symbol())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	updated := time.Date(2020, 5, 26, 13, 0, 0, 0, time.UTC)
	snap := types.CoinSnapshot{
		ID:            "tron",
		Symbol:        strPtr("trx"),
		Price:         floatPtr(0.978),
		PricePrevious: floatPtr(0.9),
		InMessage:     true,
		LastUpdated:   timePtr(updated),
	}

	got := FromSnapshot(snap).Snapshot()
	if got.ID != snap.ID || *got.Symbol != *snap.Symbol ||
		*got.Price != *snap.Price || *got.PricePrevious != *snap.PricePrevious ||
		got.InMessage != snap.InMessage || !got.LastUpdated.Equal(updated) {
		t.Errorf("snapshot round trip mismatch: %+v", got)
	}
}
