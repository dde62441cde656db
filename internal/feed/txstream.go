// Package feed connects to the external transaction-stream service over
// websocket and delivers decoded records to the MEV detector.
package feed

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"

	"github.com/avelar-dev/solarb/internal/domain"
)

// TxHandler receives each decoded transaction record.
type TxHandler func(ctx context.Context, rec domain.TxRecord)

// wireInstruction is the JSON shape of one instruction on the stream.
type wireInstruction struct {
	ProgramID string   `json:"program_id"`
	Accounts  []string `json:"accounts"`
	Data      string   `json:"data"` // base64
}

// wireTx is the JSON shape of one streamed transaction.
type wireTx struct {
	Signature    string            `json:"signature"`
	Slot         uint64            `json:"slot"`
	Instructions []wireInstruction `json:"instructions"`
}

// TxStreamFeed subscribes to the transaction stream and invokes the handler
// for every record. Delivery from the service is best-effort; the feed makes
// no attempt to fill gaps, it only reconnects with backoff on disconnect.
type TxStreamFeed struct {
	wsURL     string
	handler   TxHandler
	logger    *slog.Logger
	backoff   time.Duration
	closeOnce sync.Once
	done      chan struct{}
}

// NewTxStreamFeed creates a feed for the given websocket endpoint.
func NewTxStreamFeed(wsURL string, handler TxHandler, logger *slog.Logger) *TxStreamFeed {
	return &TxStreamFeed{
		wsURL:   wsURL,
		handler: handler,
		logger:  logger.With(slog.String("component", "tx_stream_feed")),
		backoff: 2 * time.Second,
		done:    make(chan struct{}),
	}
}

// Run connects and consumes records until ctx is cancelled, reconnecting
// with a fixed backoff on disconnect.
func (f *TxStreamFeed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("transaction stream disconnected, reconnecting",
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.backoff):
		}
	}
}

func (f *TxStreamFeed) runConnection(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, f.wsURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	f.logger.Info("transaction stream connected", slog.String("url", f.wsURL))

	// Unblock ReadMessage on shutdown. connDone releases the watcher when
	// this connection ends so reconnect cycles do not accumulate goroutines.
	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-ctx.Done():
		case <-f.done:
		case <-connDone:
			return
		}
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: read: %w", domain.ErrWSDisconnect)
		}

		rec, err := decodeTx(data)
		if err != nil {
			// Malformed records are dropped, not fatal.
			f.logger.Warn("malformed stream record",
				slog.String("error", err.Error()),
			)
			continue
		}
		f.handler(ctx, rec)
	}
}

// Close stops the feed.
func (f *TxStreamFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// decodeTx parses one wire message into a domain record. Instructions with
// an unparseable program ID are dropped individually so one bad entry does
// not discard the whole transaction.
func decodeTx(data []byte) (domain.TxRecord, error) {
	var wire wireTx
	if err := json.Unmarshal(data, &wire); err != nil {
		return domain.TxRecord{}, fmt.Errorf("feed: unmarshal: %w", err)
	}
	if wire.Signature == "" {
		return domain.TxRecord{}, fmt.Errorf("feed: record missing signature")
	}

	rec := domain.TxRecord{
		Signature:    wire.Signature,
		Slot:         wire.Slot,
		ObservedAt:   time.Now(),
		Instructions: make([]domain.Instruction, 0, len(wire.Instructions)),
	}
	for _, wi := range wire.Instructions {
		programID, err := solana.PublicKeyFromBase58(wi.ProgramID)
		if err != nil {
			continue
		}
		inst := domain.Instruction{ProgramID: programID}
		for _, acc := range wi.Accounts {
			key, err := solana.PublicKeyFromBase58(acc)
			if err != nil {
				continue
			}
			inst.Accounts = append(inst.Accounts, key)
		}
		if wi.Data != "" {
			if payload, err := base64.StdEncoding.DecodeString(wi.Data); err == nil {
				inst.Data = payload
			}
		}
		rec.Instructions = append(rec.Instructions, inst)
	}
	return rec, nil
}
