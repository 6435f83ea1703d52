package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/veilgate/ludens/internal/ai"
	"github.com/veilgate/ludens/internal/game"
	"github.com/veilgate/ludens/internal/protocol"
)

// testWorld spins up an engine with a running world loop, a degraded
// director (no LLM), and a server handler mounted on httptest.
type testWorld struct {
	eng *game.Engine
	srv *Server
	ts  *httptest.Server
}

func newTestWorld(t *testing.T, opts ...Option) *testWorld {
	t.Helper()

	eng := game.NewEngine(game.WithTickRate(120), game.WithSeed(1))
	eng.CreateScene("main")
	if err := eng.SetActiveScene("main"); err != nil {
		t.Fatal(err)
	}

	director := ai.NewDirector()
	director.RegisterNPC("npc-1", "Maro", "a grumpy blacksmith")

	srv := New(eng, director, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &testWorld{eng: eng, srv: srv, ts: ts}
}

func (w *testWorld) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(w.ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// readFrameOfType reads frames until one with the wanted type arrives,
// skipping interleaved state and event broadcasts.
func readFrameOfType(t *testing.T, conn *websocket.Conn, want protocol.Type) protocol.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for %s frame: %v", want, err)
		}
		env, err := protocol.Decode(data)
		if err != nil {
			t.Fatal(err)
		}
		if env.Type == want {
			return env
		}
	}
}

func writeFrame(t *testing.T, conn *websocket.Conn, typ protocol.Type, payload any) {
	t.Helper()
	frame, err := protocol.Encode(typ, payload)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		t.Fatal(err)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	w := newTestWorld(t)

	resp, err := http.Get(w.ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d", resp.StatusCode)
	}

	resp, err = http.Get(w.ts.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readyz before ready = %d", resp.StatusCode)
	}

	w.srv.SetReady(true)
	resp, err = http.Get(w.ts.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz after ready = %d", resp.StatusCode)
	}

	resp, err = http.Get(w.ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics = %d", resp.StatusCode)
	}
}

func TestWelcomeAndStateBroadcast(t *testing.T) {
	w := newTestWorld(t, WithStateInterval(1))
	conn := w.dial(t)

	env := readFrameOfType(t, conn, protocol.TypeWelcome)
	welcome, err := protocol.DecodePayload[protocol.Welcome](env)
	if err != nil {
		t.Fatal(err)
	}
	if welcome.ProtocolVersion != protocol.Version {
		t.Errorf("protocol version = %d", welcome.ProtocolVersion)
	}
	if welcome.TickRate != 120 {
		t.Errorf("tick rate = %d", welcome.TickRate)
	}

	env = readFrameOfType(t, conn, protocol.TypeState)
	state, err := protocol.DecodePayload[protocol.State](env)
	if err != nil {
		t.Fatal(err)
	}
	if state.Snapshot.Scene != "main" {
		t.Errorf("snapshot scene = %q", state.Snapshot.Scene)
	}
}

func TestInputReachesEngine(t *testing.T) {
	triggered := make(chan struct{}, 1)

	eng := game.NewEngine(game.WithTickRate(120))
	eng.CreateScene("main")
	if err := eng.SetActiveScene("main"); err != nil {
		t.Fatal(err)
	}
	eng.Input.BindKey("e", "interact")
	eng.Input.OnAction("interact", func() {
		select {
		case triggered <- struct{}{}:
		default:
		}
	})

	director := ai.NewDirector()
	srv := New(eng, director)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	w := &testWorld{eng: eng, srv: srv, ts: ts}
	conn := w.dial(t)
	readFrameOfType(t, conn, protocol.TypeWelcome)

	writeFrame(t, conn, protocol.TypeInput, protocol.Input{Key: "e", Down: true})

	select {
	case <-triggered:
	case <-time.After(5 * time.Second):
		t.Fatal("input never reached the engine")
	}
}

func TestDialogRequestRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	conn := w.dial(t)
	readFrameOfType(t, conn, protocol.TypeWelcome)

	writeFrame(t, conn, protocol.TypeDialogRequest, protocol.DialogRequest{NPCID: "npc-1", Text: "hello"})

	env := readFrameOfType(t, conn, protocol.TypeDialog)
	dialog, err := protocol.DecodePayload[protocol.Dialog](env)
	if err != nil {
		t.Fatal(err)
	}
	if dialog.NPCID != "npc-1" || dialog.NPCName != "Maro" {
		t.Errorf("dialog = %+v", dialog)
	}
	// No LLM configured, so the director answers with its fallback line.
	if dialog.Text != ai.DegradedReply {
		t.Errorf("text = %q", dialog.Text)
	}
}

func TestUnknownNPCDialog(t *testing.T) {
	w := newTestWorld(t)
	conn := w.dial(t)
	readFrameOfType(t, conn, protocol.TypeWelcome)

	writeFrame(t, conn, protocol.TypeDialogRequest, protocol.DialogRequest{NPCID: "ghost", Text: "boo"})

	env := readFrameOfType(t, conn, protocol.TypeError)
	perr, err := protocol.DecodePayload[protocol.Error](env)
	if err != nil {
		t.Fatal(err)
	}
	if perr.Code != protocol.CodeUnknownNPC {
		t.Errorf("error code = %q", perr.Code)
	}
}

func TestMalformedFrameRejected(t *testing.T) {
	w := newTestWorld(t)
	conn := w.dial(t)
	readFrameOfType(t, conn, protocol.TypeWelcome)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"nonsense":true}`)); err != nil {
		t.Fatal(err)
	}

	env := readFrameOfType(t, conn, protocol.TypeError)
	perr, err := protocol.DecodePayload[protocol.Error](env)
	if err != nil {
		t.Fatal(err)
	}
	if perr.Code != protocol.CodeBadMessage {
		t.Errorf("error code = %q", perr.Code)
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	// State broadcasts every tick at 120 Hz overwhelm a client that never
	// reads; the server must cut it loose instead of blocking.
	w := newTestWorld(t, WithStateInterval(1))
	w.dial(t)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if w.srv.ClientCount() == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("slow client was never dropped")
}
