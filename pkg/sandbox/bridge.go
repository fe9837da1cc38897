package sandbox

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// streamBuffer bounds the single-producer channel each Open call hands back,
// matching the "bounded queue, explicit close sentinel" shape the sandbox
// runner event stream is modeled as.
const streamBuffer = 64

// Bridge dials a sandbox runner's gRPC endpoint and turns its Stream RPC
// into a plain Go channel of Events. Runners are expected to run as a
// sidecar or on localhost, so the connection is plaintext — the same
// trust boundary the teacher's own gRPC LLM client assumes.
type Bridge struct {
	conn   *grpc.ClientConn
	client EventsClient
}

// Dial connects to a sandbox runner listening at addr.
func Dial(addr string) (*Bridge, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("sandbox: dial %s: %w", addr, err)
	}
	return &Bridge{conn: conn, client: NewEventsClient(conn)}, nil
}

// Close releases the underlying connection. It does not signal the runner
// to terminate — that is the runner's own close() responsibility (SIGTERM
// plus temp workspace teardown), outside this bridge.
func (b *Bridge) Close() error {
	return b.conn.Close()
}

// Open starts streaming events for runID and returns a channel of them.
// The channel is closed when the runner sends "done", the stream ends, or
// ctx is cancelled; a terminal "error" event is delivered on the channel
// before it closes rather than surfaced as a Go error, since the core only
// consumes the typed event stream.
func (b *Bridge) Open(ctx context.Context, runID string) (<-chan Event, error) {
	stream, err := b.client.Stream(ctx, &StreamRequest{RunID: runID})
	if err != nil {
		return nil, fmt.Errorf("sandbox: open stream for run %s: %w", runID, err)
	}

	ch := make(chan Event, streamBuffer)
	go func() {
		defer close(ch)
		for {
			ev, err := stream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case ch <- Event{Type: EventError, Data: mustJSON(ErrorData{Message: err.Error()})}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case ch <- *ev:
			case <-ctx.Done():
				return
			}
			if ev.Type == EventDone || ev.Type == EventError {
				return
			}
		}
	}()
	return ch, nil
}
