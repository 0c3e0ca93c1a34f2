package binance

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dkalman/futuresbot/internal/domain"
)

func newTestStream(handler QuoteHandler) *BookTickerStream {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBookTickerStream("", []string{"BTCUSDT", "ETHUSDT"}, handler, logger)
}

func TestStreamURLCombinesSymbols(t *testing.T) {
	s := newTestStream(nil)

	url := s.streamURL()
	if !strings.HasPrefix(url, DefaultStreamURL+"?streams=") {
		t.Errorf("url = %q", url)
	}
	if !strings.Contains(url, "btcusdt@bookTicker/ethusdt@bookTicker") {
		t.Errorf("url = %q, want lowercased combined streams", url)
	}
}

func TestHandleMessageDispatchesQuote(t *testing.T) {
	var got domain.Quote
	s := newTestStream(func(q domain.Quote) { got = q })

	payload := `{"stream":"btcusdt@bookTicker","data":{"s":"BTCUSDT","b":"99.5","a":"100.5","E":1756400000000}}`
	if err := s.handleMessage([]byte(payload)); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	if got.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %q", got.Symbol)
	}
	if got.Bid != 99.5 || got.Ask != 100.5 {
		t.Errorf("bid/ask = %v/%v", got.Bid, got.Ask)
	}
	if got.Price != 100 {
		t.Errorf("mid = %v, want 100", got.Price)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestHandleMessageRejectsEmptyBook(t *testing.T) {
	called := false
	s := newTestStream(func(domain.Quote) { called = true })

	payload := `{"stream":"btcusdt@bookTicker","data":{"s":"BTCUSDT","b":"0","a":"0"}}`
	if err := s.handleMessage([]byte(payload)); err == nil {
		t.Error("expected error for empty book")
	}
	if called {
		t.Error("handler called for empty book")
	}
}

func TestHandleMessageIgnoresForeignPayloads(t *testing.T) {
	called := false
	s := newTestStream(func(domain.Quote) { called = true })

	payload := `{"stream":"control","data":{"result":null,"id":1}}`
	if err := s.handleMessage([]byte(payload)); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	if called {
		t.Error("handler called for non-ticker payload")
	}
}
