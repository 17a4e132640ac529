package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"licitacion-go/internal/signal"
)

var primaryEntries = []string{"LA", "BI", "OF", "TV"}

type primaryProduct struct {
	Symbol   string `json:"symbol"`
	MarketID string `json:"marketId"`
}

type primarySubscription struct {
	Type     string           `json:"type"`
	Level    int              `json:"level"`
	Entries  []string         `json:"entries"`
	Products []primaryProduct `json:"products"`
	Depth    int              `json:"depth"`
}

type primaryLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
	Date  int64   `json:"date"`
}

type primaryMarketData struct {
	LA *primaryLevel  `json:"LA"`
	BI []primaryLevel `json:"BI"`
	OF []primaryLevel `json:"OF"`
	TV *float64       `json:"TV"`
}

type primaryMessage struct {
	Type         string            `json:"type"`
	Timestamp    int64             `json:"timestamp"`
	InstrumentID primaryProduct    `json:"instrumentId"`
	MarketData   primaryMarketData `json:"marketData"`
}

func (f *Feed) runPrimary(ctx context.Context, out chan<- signal.MarketSnapshot) error {
	if len(f.snapshotSymbols()) == 0 {
		return fmt.Errorf("primary feed requires at least one ticker")
	}
	if f.primary.WSURL == "" {
		return fmt.Errorf("primary feed requires a websocket url")
	}

	backoff := f.reconnectMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		subscribed := false
		err := f.consumePrimaryStream(ctx, out, func() { subscribed = true })
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if subscribed {
			backoff = f.reconnectMin
		}
		f.log.Warn().Err(err).Dur("backoff", backoff).Msg("primary feed disconnected, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(f.reconnectMax), float64(backoff)*1.8))
	}
}

// authenticate exchanges credentials for a session token. An empty RestURL skips authentication.
func (f *Feed) authenticate(ctx context.Context) (string, error) {
	if f.primary.RestURL == "" {
		return "", nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.primary.RestURL+"/auth/getToken", nil)
	if err != nil {
		return "", fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("X-Username", f.primary.Username)
	req.Header.Set("X-Password", f.primary.Password)
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth status %d", resp.StatusCode)
	}
	token := resp.Header.Get("X-Auth-Token")
	if token == "" {
		return "", fmt.Errorf("auth response missing token")
	}
	return token, nil
}

// consumePrimaryStream runs one session. onSubscribed fires once the subscription is sent.
func (f *Feed) consumePrimaryStream(ctx context.Context, out chan<- signal.MarketSnapshot, onSubscribed func()) error {
	token, err := f.authenticate(ctx)
	if err != nil {
		return err
	}
	header := http.Header{}
	if token != "" {
		header.Set("X-Auth-Token", token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.primary.WSURL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	tickers := f.snapshotSymbols()
	if err := conn.WriteJSON(f.subscription(tickers)); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	onSubscribed()
	f.log.Info().Str("provider", ProviderPrimary).Strs("tickers", tickers).Msg("connected market data feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("primary ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()
	go func() {
		<-pingCtx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		snap, ok, err := decodePrimaryMessage(message)
		if err != nil {
			f.log.Warn().Err(err).Msg("failed to decode primary message")
			continue
		}
		if !ok {
			continue
		}
		select {
		case out <- snap:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *Feed) subscription(tickers []string) primarySubscription {
	products := make([]primaryProduct, len(tickers))
	for i, t := range tickers {
		products[i] = primaryProduct{
			Symbol:   composeSymbol(f.primary.SymbolPrefix, t, f.primary.Settlement),
			MarketID: f.primary.MarketID,
		}
	}
	return primarySubscription{Type: "smd", Level: 1, Entries: primaryEntries, Products: products, Depth: 1}
}

// decodePrimaryMessage turns an "Md" frame into a snapshot. ok is false for other frame types.
func decodePrimaryMessage(raw []byte) (signal.MarketSnapshot, bool, error) {
	var msg primaryMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return signal.MarketSnapshot{}, false, err
	}
	if msg.Type != "Md" {
		return signal.MarketSnapshot{}, false, nil
	}
	ticker := tickerFromSymbol(msg.InstrumentID.Symbol)
	if ticker == "" {
		return signal.MarketSnapshot{}, false, fmt.Errorf("market data without instrument symbol")
	}
	ts := time.Now().UTC()
	if msg.Timestamp > 0 {
		ts = time.UnixMilli(msg.Timestamp).UTC()
	}
	snap := signal.MarketSnapshot{Ticker: ticker, Ts: ts}
	md := msg.MarketData
	if md.LA != nil {
		snap.LastPrice = md.LA.Price
		snap.LastSize = md.LA.Size
		snap.HasLast = true
	}
	if len(md.BI) > 0 {
		snap.BidPrice = md.BI[0].Price
		snap.BidSize = md.BI[0].Size
	}
	if len(md.OF) > 0 {
		snap.OfferPrice = md.OF[0].Price
		snap.OfferSize = md.OF[0].Size
	}
	if md.TV != nil {
		snap.Volume = *md.TV
		snap.HasVolume = true
	}
	snap.SpreadBps, snap.HasSpread = signal.SpreadBps(snap.BidPrice, snap.OfferPrice)
	return snap, true, nil
}
