package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
)

// MaxFrameSize bounds one request frame. Larger frames are drained and
// answered with -32600.
const MaxFrameSize = 1 << 20

var nullID = json.RawMessage("null")

// Server reads newline-delimited JSON-RPC frames, dispatches them to a
// bounded worker pool, and writes one response line per request. Frames
// are decoded serially to preserve request order in logs; responses are
// unordered relative to requests and clients must match by id.
type Server struct {
	handler     Handler
	maxInFlight int
}

// NewServer returns a Server. maxInFlight <= 0 selects 2 x GOMAXPROCS.
func NewServer(handler Handler, maxInFlight int) *Server {
	if maxInFlight <= 0 {
		maxInFlight = 2 * runtime.GOMAXPROCS(0)
	}
	return &Server{handler: handler, maxInFlight: maxInFlight}
}

// Run serves the transport until EOF or context cancellation. EOF is a
// graceful shutdown and returns nil once in-flight work drains.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	var ctx2, cancel = context.WithCancel(ctx)
	defer cancel()

	var out = &lineWriter{w: w}
	var workers = make(chan struct{}, s.maxInFlight)
	var wg sync.WaitGroup
	defer wg.Wait()

	var in = bufio.NewReaderSize(r, 64*1024)
	for {
		if err := ctx2.Err(); err != nil {
			return nil
		}

		var frame, err = readFrame(in)
		if errors.Is(err, io.EOF) {
			return nil // Transport closed; abandon nothing that finished.
		} else if errors.Is(err, errFrameTooLarge) {
			out.respond(Response{JSONRPC: "2.0", ID: nullID,
				Error: NewError(CodeInvalidRequest, "frame exceeds 1 MiB")})
			continue
		} else if err != nil {
			return fmt.Errorf("reading frame: %w", err)
		} else if len(bytes.TrimSpace(frame)) == 0 {
			continue
		}

		var req Request
		if uerr := json.Unmarshal(frame, &req); uerr != nil {
			out.respond(Response{JSONRPC: "2.0", ID: nullID,
				Error: NewError(CodeParseError, "malformed JSON")})
			continue
		}
		var id = req.ID
		if len(id) == 0 {
			id = nullID
		}

		// Claim a worker before spawning so excess requests queue here,
		// in arrival order, rather than racing in goroutines.
		select {
		case workers <- struct{}{}:
		case <-ctx2.Done():
			return nil
		}

		wg.Add(1)
		go func(req Request, id json.RawMessage) {
			defer wg.Done()
			defer func() { <-workers }()

			var resp = Response{JSONRPC: "2.0", ID: id}
			var result, herr = s.handler.Serve(ctx2, req.Method, req.Params)
			if herr != nil {
				resp.Error = herr
			} else {
				resp.Result = result
			}
			out.respond(resp)
		}(req, id)
	}
}

var errFrameTooLarge = errors.New("frame too large")

// readFrame reads one newline-terminated frame, enforcing MaxFrameSize.
// An oversize frame is fully drained before errFrameTooLarge is returned,
// so the stream stays aligned on line boundaries.
func readFrame(in *bufio.Reader) ([]byte, error) {
	var frame []byte
	for {
		var chunk, err = in.ReadSlice('\n')
		frame = append(frame, chunk...)

		if err == nil || errors.Is(err, io.EOF) {
			if len(frame) == 0 && errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			if len(frame) > MaxFrameSize {
				return nil, errFrameTooLarge
			}
			if err == nil {
				return frame[:len(frame)-1], nil // Trim the delimiter.
			}
			return frame, nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
		if len(frame) > MaxFrameSize {
			// Drain the rest of the oversize line before reporting.
			for {
				_, derr := in.ReadSlice('\n')
				if derr == nil || errors.Is(derr, io.EOF) {
					return nil, errFrameTooLarge
				} else if !errors.Is(derr, bufio.ErrBufferFull) {
					return nil, derr
				}
			}
		}
	}
}

// lineWriter serializes whole-line response writes.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) respond(resp Response) {
	var raw, err = json.Marshal(&resp)
	if err != nil {
		log.WithField("err", err).Error("marshalling response frame")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err = l.w.Write(append(raw, '\n')); err != nil {
		log.WithField("err", err).Warn("writing response frame")
	}
}
