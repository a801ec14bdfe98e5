package dashboard

import (
	"testing"
	"time"

	"crypto-ticker-engine/internal/control"
	"crypto-ticker-engine/pkg/types"
)

type fakePoller struct {
	queue []control.Message
}

func (p *fakePoller) Poll() (control.Message, bool) {
	if len(p.queue) == 0 {
		return control.Message{}, false
	}
	msg := p.queue[0]
	p.queue = p.queue[1:]
	return msg, true
}

func TestNextUpdateText(t *testing.T) {
	updated := time.Date(2020, 5, 26, 13, 0, 0, 0, time.UTC)
	coins := []types.CoinSnapshot{
		{ID: "bitcoin", LastUpdated: &updated},
	}

	got := NextUpdateText(coins, time.Minute, &fakePoller{})
	if got != "13:01:00" {
		t.Errorf("text = %q, want 13:01:00", got)
	}
}

func TestNextUpdateTextNoCoins(t *testing.T) {
	if got := NextUpdateText(nil, time.Minute, &fakePoller{}); got != "N/A" {
		t.Errorf("text = %q, want N/A", got)
	}
}

func TestNextUpdateTextNeverRefreshed(t *testing.T) {
	coins := []types.CoinSnapshot{{ID: "bitcoin"}}
	if got := NextUpdateText(coins, time.Minute, &fakePoller{}); got != "N/A" {
		t.Errorf("text = %q, want N/A", got)
	}
}

func TestNextUpdateTextConnectionError(t *testing.T) {
	updated := time.Date(2020, 5, 26, 13, 0, 0, 0, time.UTC)
	coins := []types.CoinSnapshot{{ID: "bitcoin", LastUpdated: &updated}}
	poller := &fakePoller{
		queue: []control.Message{{Type: control.TypeConnectionError}},
	}

	got := NextUpdateText(coins, time.Minute, poller)
	if got != "Connection error, attempting to re-connect" {
		t.Errorf("text = %q, want degraded message", got)
	}

	// 错误消息已被消费，下一次恢复正常文案
	if got := NextUpdateText(coins, time.Minute, poller); got != "13:01:00" {
		t.Errorf("text after consuming error = %q, want 13:01:00", got)
	}
}
