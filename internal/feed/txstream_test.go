package feed

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"

	"github.com/avelar-dev/solarb/internal/domain"
)

const raydiumProgram = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

func TestDecodeTxParsesWireRecord(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("swap-instruction-data"))
	raw, err := json.Marshal(map[string]any{
		"signature": "5sigAAAA",
		"slot":      250000000,
		"instructions": []map[string]any{
			{
				"program_id": raydiumProgram,
				"accounts":   []string{raydiumProgram},
				"data":       payload,
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	rec, err := decodeTx(raw)
	if err != nil {
		t.Fatalf("decodeTx: %v", err)
	}
	if rec.Signature != "5sigAAAA" {
		t.Fatalf("signature = %q", rec.Signature)
	}
	if rec.Slot != 250000000 {
		t.Fatalf("slot = %d", rec.Slot)
	}
	if len(rec.Instructions) != 1 {
		t.Fatalf("instructions = %d, want 1", len(rec.Instructions))
	}
	inst := rec.Instructions[0]
	if inst.ProgramID != solana.MustPublicKeyFromBase58(raydiumProgram) {
		t.Fatalf("program ID = %s", inst.ProgramID)
	}
	if string(inst.Data) != "swap-instruction-data" {
		t.Fatalf("payload = %q", inst.Data)
	}
}

func TestDecodeTxRejectsMissingSignature(t *testing.T) {
	if _, err := decodeTx([]byte(`{"slot": 1, "instructions": []}`)); err == nil {
		t.Fatal("expected error for missing signature")
	}
}

func TestDecodeTxRejectsInvalidJSON(t *testing.T) {
	if _, err := decodeTx([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

// watcherGoroutines counts live read-unblock watchers across all goroutine
// stacks.
func watcherGoroutines() int {
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	return strings.Count(string(buf[:n]), "runConnection.func1")
}

func TestRunReleasesWatcherGoroutinesAcrossReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	accepted := make(chan struct{}, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- struct{}{}
		conn.Close()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	feed := NewTxStreamFeed(wsURL, func(context.Context, domain.TxRecord) {},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	feed.backoff = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = feed.Run(ctx)
	}()

	// Let the feed cycle through several dropped connections.
	for i := 0; i < 5; i++ {
		select {
		case <-accepted:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for connection %d", i+1)
		}
	}

	// Old watchers exit shortly after their connection ends; at most the
	// live connection's watcher may remain.
	deadline := time.Now().Add(2 * time.Second)
	for {
		n := watcherGoroutines()
		if n <= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stale watcher goroutines = %d, want at most 1", n)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	feed.Close()
	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not stop")
	}
}

func TestDecodeTxDropsBadInstructionsIndividually(t *testing.T) {
	raw := []byte(`{
		"signature": "5sig",
		"slot": 1,
		"instructions": [
			{"program_id": "not-a-key", "data": ""},
			{"program_id": "` + raydiumProgram + `", "data": ""}
		]
	}`)

	rec, err := decodeTx(raw)
	if err != nil {
		t.Fatalf("decodeTx: %v", err)
	}
	if len(rec.Instructions) != 1 {
		t.Fatalf("instructions = %d, want 1 (bad entry dropped)", len(rec.Instructions))
	}
}
