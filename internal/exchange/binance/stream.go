package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dkalman/futuresbot/internal/domain"
)

const (
	// DefaultStreamURL is the combined-stream endpoint for USD-M futures.
	DefaultStreamURL = "wss://fstream.binance.com/stream"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// QuoteHandler is called for every book-ticker update.
type QuoteHandler func(domain.Quote)

// BookTickerStream subscribes to the bookTicker stream for a set of symbols
// and dispatches each update as a Quote. It reconnects with exponential
// backoff until its context is cancelled.
type BookTickerStream struct {
	url     string
	symbols []string
	handler QuoteHandler
	logger  *slog.Logger
}

func NewBookTickerStream(url string, symbols []string, handler QuoteHandler, logger *slog.Logger) *BookTickerStream {
	if url == "" {
		url = DefaultStreamURL
	}
	return &BookTickerStream{
		url:     url,
		symbols: symbols,
		handler: handler,
		logger:  logger.With(slog.String("component", "binance_stream")),
	}
}

// Run blocks until ctx is cancelled, reconnecting on any read failure.
func (s *BookTickerStream) Run(ctx context.Context) error {
	if len(s.symbols) == 0 {
		s.logger.Info("no symbols to stream, exiting")
		return nil
	}

	delay := reconnectDelay
	for {
		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (s *BookTickerStream) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("binance: stream connect: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	s.logger.Info("stream connected", slog.Int("symbols", len(s.symbols)))

	// Close the connection when ctx ends so ReadMessage unblocks, and keep
	// the server's ping expectations satisfied.
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				conn.Close()
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("binance: stream read: %w", err)
		}
		if err := s.handleMessage(data); err != nil {
			s.logger.Debug("stream message dropped",
				slog.String("error", err.Error()),
				slog.Int("payload_len", len(data)))
		}
	}
}

// streamURL builds the combined-stream URL:
// .../stream?streams=btcusdt@bookTicker/ethusdt@bookTicker
func (s *BookTickerStream) streamURL() string {
	streams := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		streams[i] = strings.ToLower(sym) + "@bookTicker"
	}
	return s.url + "?streams=" + strings.Join(streams, "/")
}

type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type bookTickerEvent struct {
	Symbol    string `json:"s"`
	BidPrice  string `json:"b"`
	AskPrice  string `json:"a"`
	EventTime int64  `json:"E"`
}

func (s *BookTickerStream) handleMessage(data []byte) error {
	var msg combinedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	var ev bookTickerEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return err
	}
	if ev.Symbol == "" {
		return nil
	}

	bid, _ := strconv.ParseFloat(ev.BidPrice, 64)
	ask, _ := strconv.ParseFloat(ev.AskPrice, 64)
	if bid <= 0 && ask <= 0 {
		return fmt.Errorf("empty book for %s", ev.Symbol)
	}

	ts := time.Now().UTC()
	if ev.EventTime > 0 {
		ts = time.UnixMilli(ev.EventTime).UTC()
	}

	quote := domain.Quote{
		Symbol:    ev.Symbol,
		Bid:       bid,
		Ask:       ask,
		Timestamp: ts,
	}
	switch {
	case bid > 0 && ask > 0:
		quote.Price = (bid + ask) / 2
	case bid > 0:
		quote.Price = bid
	default:
		quote.Price = ask
	}

	if s.handler != nil {
		s.handler(quote)
	}
	return nil
}
