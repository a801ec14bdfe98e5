package coin

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"crypto-ticker-engine/pkg/types"
)

// NotFoundString 未获取到数值时的占位符
const NotFoundString = "..."

// 价格变化对应的显示颜色
const (
	ColourUp      = "green"
	ColourDown    = "red"
	ColourNeutral = "#cc9200" // 深黄色，白色背景上可见
)

// ErrInvalidValue 非数值输入，属于数据完整性错误，不重试
var ErrInvalidValue = errors.New("value must be a float, int or numeric string")

// FormatPrice 四舍六入五成双（银行家舍入）保留2位小数，返回定长小数字符串。
func FormatPrice(value interface{}) (string, error) {
	var f float64

	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidValue, v)
		}
		f = parsed
	default:
		return "", fmt.Errorf("%w: %T", ErrInvalidValue, value)
	}

	return strconv.FormatFloat(math.RoundToEven(f*100)/100, 'f', 2, 64), nil
}

// Coin 单个被跟踪币种的状态。
// 价格相关字段用指针表示可选，派生字段在每次赋值时重新计算。
type Coin struct {
	id            string
	symbol        *string
	price         *float64
	pricePrevious *float64
	priceChange   *float64
	inMessage     bool
	lastUpdated   *time.Time

	symbolStr      string
	priceStr       string
	priceChangeStr string
	checkboxStr    string
	colourStr      string
}

// New 创建一个只有id的空币种
func New(id string) *Coin {
	c := &Coin{id: id}
	c.SetSymbol(nil)
	c.SetInMessage(false)
	c.SetPrice(nil, nil)
	return c
}

// FromSnapshot 从持久化快照还原币种
func FromSnapshot(snap types.CoinSnapshot) *Coin {
	c := New(snap.ID)
	c.SetSymbol(snap.Symbol)
	c.SetInMessage(snap.InMessage)
	c.SetLastUpdated(snap.LastUpdated)
	c.SetPrice(snap.Price, snap.PricePrevious)
	return c
}

// SetPrice 设置当前价格。previous 不为nil时显式覆盖上一次价格，
// 否则保留已有的 price_previous（刷新时的前值推移见 RecordPrice）。
func (c *Coin) SetPrice(price, previous *float64) {
	if previous != nil {
		c.pricePrevious = previous
	}

	c.price = price
	if c.price != nil {
		c.priceStr, _ = FormatPrice(*c.price)
	} else {
		c.priceStr = NotFoundString
	}
	c.updatePriceChange()
}

// RecordPrice 记录一次刷新结果：当前价格推移为上一次价格，
// price 为nil表示上游找不到该交易对，价格进入缺失状态但不丢失历史。
func (c *Coin) RecordPrice(price *float64, at time.Time) {
	c.pricePrevious = c.price
	c.lastUpdated = &at
	c.SetPrice(price, nil)
}

// ResolveSymbol 按id在目录中查找symbol，只在尚未解析时执行
func (c *Coin) ResolveSymbol(catalog map[string]string) {
	if c.symbol != nil {
		return
	}
	if symbol, ok := catalog[c.id]; ok {
		c.SetSymbol(&symbol)
	}
}

// SetSymbol 设置ticker缩写
func (c *Coin) SetSymbol(symbol *string) {
	c.symbol = symbol
	if c.symbol == nil {
		c.symbolStr = NotFoundString
	} else {
		c.symbolStr = *c.symbol
	}
}

// SetInMessage 设置是否进入播报，该标志由仪表盘控制，引擎只透传
func (c *Coin) SetInMessage(inMessage bool) {
	c.inMessage = inMessage
	if inMessage {
		c.checkboxStr = "checked"
	} else {
		c.checkboxStr = ""
	}
}

// SetLastUpdated 设置最近一次成功刷新时间
func (c *Coin) SetLastUpdated(lastUpdated *time.Time) {
	c.lastUpdated = lastUpdated
}

func (c *Coin) ID() string               { return c.id }
func (c *Coin) Symbol() *string          { return c.symbol }
func (c *Coin) Price() *float64          { return c.price }
func (c *Coin) PricePrevious() *float64  { return c.pricePrevious }
func (c *Coin) PriceChange() *float64    { return c.priceChange }
func (c *Coin) InMessage() bool          { return c.inMessage }
func (c *Coin) LastUpdated() *time.Time  { return c.lastUpdated }
func (c *Coin) SymbolString() string     { return c.symbolStr }
func (c *Coin) PriceString() string      { return c.priceStr }
func (c *Coin) ChangeString() string     { return c.priceChangeStr }
func (c *Coin) CheckboxString() string   { return c.checkboxStr }
func (c *Coin) ColourString() string     { return c.colourStr }

// Snapshot 导出持久化快照
func (c *Coin) Snapshot() types.CoinSnapshot {
	return types.CoinSnapshot{
		ID:            c.id,
		Symbol:        c.symbol,
		Price:         c.price,
		PricePrevious: c.pricePrevious,
		InMessage:     c.inMessage,
		LastUpdated:   c.lastUpdated,
	}
}

// updatePriceChange 重新计算价格变化：
// 价格缺失 → 变化缺失；首次观察（无前值）→ 0；否则为差值。
func (c *Coin) updatePriceChange() {
	switch {
	case c.price == nil:
		c.priceChange = nil
		c.priceChangeStr = NotFoundString
	case c.pricePrevious == nil:
		zero := 0.0
		c.priceChange = &zero
		c.priceChangeStr, _ = FormatPrice(zero)
	default:
		change := *c.price - *c.pricePrevious
		c.priceChange = &change
		c.priceChangeStr, _ = FormatPrice(change)
	}

	c.updateColour()
}

// updateColour 根据舍入后的变化值取颜色，避免舍入导致的符号翻转
func (c *Coin) updateColour() {
	colour := ColourNeutral

	if c.priceChange != nil {
		changeStr, _ := FormatPrice(*c.priceChange)
		rounded, _ := strconv.ParseFloat(changeStr, 64)

		if rounded < 0 {
			colour = ColourDown
		}
		if rounded > 0 {
			colour = ColourUp
		}
	}

	c.colourStr = colour
}
