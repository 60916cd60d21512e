package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tos-network/shardvalidator/log"
)

// envelope is the wire shape a transport decodes before handing a
// Request to Dispatch: a kind tag plus the kind-specific payload,
// deferred as raw JSON until the matching handler unmarshals it.
type envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses a wire envelope into a Request. It is the boundary
// every concrete transport funnels bytes through before calling
// Dispatch; a transport that already has a decoded Kind/Payload pair
// (e.g. one demultiplexing on a length-prefixed binary framing) can
// construct a Request directly and skip it.
func Decode(data []byte) (Request, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Request{}, fmt.Errorf("control: decode envelope: %w", err)
	}
	if e.Kind == "" {
		return Request{}, fmt.Errorf("control: decode envelope: %w", ErrMissingKind)
	}
	return Request{Kind: e.Kind, Payload: e.Payload}, nil
}

// responseEnvelope is the wire shape Response is rendered to.
type responseEnvelope struct {
	Rejected bool   `json:"rejected,omitempty"`
	Kind     Kind   `json:"kind"`
	Result   any    `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

func encode(r Response) responseEnvelope {
	e := responseEnvelope{Rejected: r.Rejected, Kind: r.Kind, Result: r.Result}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

// JSONTransport is the one concrete transport binding this module
// ships: a single HTTP endpoint accepting a POST body of {kind,
// payload} and replying with the matching {kind, result|error}
// envelope. It exists so cmd/shardvalidator has something to serve
// ControlQuery requests over; a deployment wanting the original's ADNL
// RPC framing instead would decode onto the same Dispatcher.
type JSONTransport struct {
	Addr       string
	Dispatcher *Dispatcher
}

// Serve blocks serving ControlQuery requests on t.Addr until ctx is
// canceled, at which point it shuts the listener down and returns nil,
// or returns the listener's own startup/runtime error.
func (t *JSONTransport) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/control", t.handle)
	srv := &http.Server{Addr: t.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info("control query transport listening", "addr", t.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (t *JSONTransport) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := Decode(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := t.Dispatcher.Dispatch(req)

	w.Header().Set("Content-Type", "application/json")
	if resp.Rejected {
		w.WriteHeader(http.StatusNotFound)
	} else if resp.Err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
	if err := json.NewEncoder(w).Encode(encode(resp)); err != nil {
		log.Error("control query response encode failed", "kind", req.Kind, "err", err)
	}
}
