package session

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"sync"

	"asr_server/internal/audio"
	"asr_server/internal/buffer"
	"asr_server/internal/logger"
	"asr_server/internal/pipeline"
	"asr_server/internal/resource"
)

// Error codes carried on the wire's "error" frame. GPU_OOM and
// INVALID_FORMAT never close the connection. INTERNAL closes it when it
// reports a fault in the session loop; an INTERNAL reporting a failed
// pipeline run for one buffer leaves the session open.
const (
	CodeInvalidFormat = "INVALID_FORMAT"
	CodeGPUOOM        = "GPU_OOM"
	CodeInternal      = "INTERNAL"
)

// silencePeakAmplitude is the peak-sample floor below which an inbound
// chunk counts as silence for the buffer's flush trigger. Samples are
// normalized float32 in [-1, 1]; -60 dBFS is well under any voiced audio.
const silencePeakAmplitude = 0.001

type connectionEstablishedMsg struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type audioReceivedMsg struct {
	Type          string `json:"type"`
	BytesReceived int    `json:"bytes_received"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Runtime is the one-task-per-connection state machine described in the
// component design: it reads framed messages, validates and buffers audio,
// triggers flushes, dispatches the partial phase synchronously and spawns
// the final phase in the background, and serializes every outbound write
// through a single mutex (concurrent writes to a framed transport are
// undefined).
type Runtime struct {
	ID   string
	conn Conn

	validator  *audio.Validator
	buf        *buffer.SessionBuffer
	pipeline   *pipeline.Pipeline
	supervisor *resource.Supervisor
	metrics    *resource.Metrics
	registry   *Registry

	log *slog.Logger

	writeMu sync.Mutex
	wg      sync.WaitGroup // outstanding background final-phase goroutines
}

// NewRuntime builds a Runtime for one freshly-accepted connection. The
// caller is responsible for calling Run, which blocks until the connection
// closes or an unrecoverable fault occurs.
func NewRuntime(id string, conn Conn, validator *audio.Validator, p *pipeline.Pipeline, sup *resource.Supervisor, metrics *resource.Metrics, registry *Registry) *Runtime {
	return &Runtime{
		ID:         id,
		conn:       conn,
		validator:  validator,
		buf:        buffer.New(),
		pipeline:   p,
		supervisor: sup,
		metrics:    metrics,
		registry:   registry,
		log:        logger.WithSession(id),
	}
}

// Run drives the CONNECTING->OPEN->CLOSED lifecycle for one connection. It
// registers the session, sends the handshake frame, then loops reading
// frames until disconnect or an unrecoverable send/receive fault. On
// return the session has been fully deregistered and any in-flight
// background final-phase work has been given a chance to finish or
// observe the connection closing.
func (rt *Runtime) Run(ctx context.Context) {
	rt.registry.Add(rt.ID, Handle{ID: rt.ID})
	if rt.metrics != nil {
		rt.metrics.SessionOpened(ctx)
	}
	rt.log.Info("session_opened")

	defer func() {
		rt.registry.Remove(rt.ID)
		if rt.metrics != nil {
			rt.metrics.SessionClosed(ctx)
		}
		rt.wg.Wait()
		rt.conn.Close()
		rt.log.Info("session_closed")
	}()

	if err := rt.send(connectionEstablishedMsg{
		Type:      "connection_established",
		Message:   "ready for audio",
		SessionID: rt.ID,
	}); err != nil {
		rt.log.Warn("handshake_send_failed", "error", err)
		return
	}

	for {
		messageType, data, err := rt.conn.ReadMessage()
		if err != nil {
			rt.log.Debug("connection_read_closed", "error", err)
			return
		}

		if messageType != BinaryMessage {
			rt.sendError(CodeInvalidFormat, "text frames are not supported, send raw audio as binary frames")
			continue
		}

		if err := rt.handleBinary(ctx, data); err != nil {
			resource.ReportInternalError(rt.ID, err)
			rt.sendError(CodeInternal, err.Error())
			rt.log.Error("session_loop_fault", "error", err)
			return
		}
	}
}

// handleBinary validates and appends one inbound audio chunk, acknowledges
// it, and triggers a flush when the buffer has reached a flush-worthy
// boundary. A validation failure is reported but never terminates the
// session; only an unexpected error from buffering itself does.
func (rt *Runtime) handleBinary(ctx context.Context, data []byte) error {
	if err := rt.validator.Validate(data); err != nil {
		rt.sendError(CodeInvalidFormat, err.Error())
		return nil
	}

	if err := rt.buf.Append(data); err != nil {
		return err
	}

	// Classify the chunk for the silence-driven flush trigger: a chunk
	// whose peak sample stays under the silence floor accumulates toward
	// the silence threshold, voiced audio resets the counter.
	if peakAmplitude(data) < silencePeakAmplitude {
		rt.buf.TrackSilence(float64(len(data)) / float64(buffer.BytesPerSecond))
	} else {
		rt.buf.ResetSilence()
	}

	rt.send(audioReceivedMsg{Type: "audio_received", BytesReceived: len(data)})

	if rt.buf.ShouldFlush() {
		rt.flushAndProcess(ctx)
	}

	return nil
}

// flushAndProcess atomically flushes the buffer and runs the two-phase
// pipeline: the partial phase synchronously (so GPU backpressure naturally
// propagates to the read loop), the final phase in a detached goroutine
// that never blocks the next buffer.
func (rt *Runtime) flushAndProcess(ctx context.Context) {
	flushed, err := rt.buf.Flush()
	if err != nil {
		rt.log.Error("buffer_flush_failed", "error", err)
		return
	}

	samples := bytesToFloat32(flushed.Bytes)

	partial, recognized, err := rt.pipeline.ProcessPartial(samples, flushed.BufferID, flushed.StartTime)
	if err != nil {
		wrapped := rt.supervisor.HandleError(ctx, flushed.BufferID, err)
		code := CodeInternal
		if wrapped != err {
			code = CodeGPUOOM
		}
		rt.sendError(code, wrapped.Error())
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordStageLatency(ctx, "partial", partial.LatencyMs)
	}
	rt.send(partial)

	// recognized.Segments is non-nil only when the recognizer actually ran;
	// a nil Segments slice is VAD's "no speech" short-circuit, which never
	// produces a final phase (see pipeline.ProcessPartial).
	if recognized.Segments == nil {
		return
	}

	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		final, err := rt.pipeline.ProcessFinal(recognized, samples, flushed.BufferID)
		if err != nil {
			rt.log.Warn("final_phase_failed", "buffer_id", flushed.BufferID, "error", err)
			return
		}
		if rt.metrics != nil {
			rt.metrics.RecordStageLatency(ctx, "final", final.LatencyMs)
		}
		rt.send(final)
	}()
}

// send serializes one outbound JSON frame. A send failure is logged and
// swallowed here — the caller decides whether it's fatal to the loop (the
// main loop treats a read failure as the disconnect signal; background
// finals simply log-and-drop on a closed connection, per the concurrency
// model).
func (rt *Runtime) send(v interface{}) error {
	rt.writeMu.Lock()
	defer rt.writeMu.Unlock()
	if err := rt.conn.WriteJSON(v); err != nil {
		rt.log.Debug("send_failed", "error", err)
		return err
	}
	return nil
}

func (rt *Runtime) sendError(code, message string) {
	rt.send(errorMsg{Type: "error", Code: code, Message: message})
}

// bytesToFloat32 decodes the wire format (16 kHz mono IEEE-754 float32
// little-endian, no header) into samples. The Audio Validator guarantees
// frame alignment before bytes ever reach here.
func bytesToFloat32(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// peakAmplitude scans a frame-aligned chunk for its largest absolute
// sample value without allocating a decoded copy.
func peakAmplitude(b []byte) float32 {
	var peak float32
	for i := 0; i+4 <= len(b); i += 4 {
		s := math.Float32frombits(binary.LittleEndian.Uint32(b[i : i+4]))
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
