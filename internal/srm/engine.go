// Package srm implements a scale-rotate-mirror engine for RGB565 surfaces.
//
// The engine mirrors the contract of a hardware SRM block: clients register
// once, then submit blocking transactions that read a block from an input
// picture, scale it, rotate it counter-clockwise in 90° steps, mirror it and
// write it into an output picture. Transactions are serialized, as on a
// single hardware engine.
package srm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/smazurov/camdisplay/internal/display"
)

// DefaultMaxClients is the number of clients an engine accepts.
const DefaultMaxClients = 4

var (
	// ErrNoFreeClient is returned when every client slot is taken.
	ErrNoFreeClient = errors.New("no free SRM client slot")
	// ErrUnsupportedOperation is returned for non-SRM registrations.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrNotRegistered is returned when a client is used after Unregister.
	ErrNotRegistered = errors.New("client not registered")
)

// Engine executes SRM transactions on the CPU.
type Engine struct {
	mu         sync.Mutex
	maxClients int
	clients    int
	logger     *slog.Logger

	transactions uint64
	failures     uint64
	busy         time.Duration
}

// Stats are cumulative engine counters.
type Stats struct {
	Clients      int
	Transactions uint64
	Failures     uint64
	Busy         time.Duration
}

// New creates an engine accepting up to maxClients registrations.
// Zero selects DefaultMaxClients.
func New(maxClients int, logger *slog.Logger) *Engine {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{maxClients: maxClients, logger: logger}
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return "srm-cpu"
}

// Register reserves a client slot.
func (e *Engine) Register(cfg display.ClientConfig) (display.TransformClient, error) {
	if cfg.Operation != display.OperationSRM {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperation, cfg.Operation)
	}
	if cfg.MaxPendingTransactions < 0 {
		return nil, fmt.Errorf("invalid max pending transactions %d", cfg.MaxPendingTransactions)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clients >= e.maxClients {
		return nil, ErrNoFreeClient
	}
	e.clients++
	e.logger.Debug("SRM client registered", "clients", e.clients)
	return &client{engine: e}, nil
}

// Clients returns the number of registered clients.
func (e *Engine) Clients() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clients
}

func (e *Engine) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clients > 0 {
		e.clients--
	}
}

func (e *Engine) run(ctx context.Context, req *display.SRMRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g, err := validate(req)
	if err != nil {
		e.mu.Lock()
		e.failures++
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	execute(req, g)
	e.busy += time.Since(start)
	e.transactions++
	return nil
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Clients:      e.clients,
		Transactions: e.transactions,
		Failures:     e.failures,
		Busy:         e.busy,
	}
}

type client struct {
	mu     sync.Mutex
	engine *Engine
}

func (c *client) Transform(ctx context.Context, req *display.SRMRequest) error {
	c.mu.Lock()
	e := c.engine
	c.mu.Unlock()
	if e == nil {
		return ErrNotRegistered
	}
	return e.run(ctx, req)
}

func (c *client) Unregister() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return ErrNotRegistered
	}
	c.engine.release()
	c.engine = nil
	return nil
}

// geometry is the validated shape of a transaction.
type geometry struct {
	scaledW, scaledH int // input block after scaling
	outW, outH       int // output block after rotation
}

// Validate checks a request's surfaces, geometry and buffer capacities
// without executing it.
func Validate(req *display.SRMRequest) error {
	_, err := validate(req)
	return err
}

func validate(req *display.SRMRequest) (geometry, error) {
	var g geometry
	if req == nil {
		return g, errors.New("nil request")
	}
	in, out := req.In, req.Out

	if in.ColorMode != display.ColorModeRGB565 || out.ColorMode != display.ColorModeRGB565 {
		return g, errors.New("only RGB565 surfaces are supported")
	}
	if req.Mode != display.TransModeBlocking {
		return g, errors.New("only blocking transactions are supported")
	}
	switch req.Rotation {
	case display.Rotate0, display.Rotate90, display.Rotate180, display.Rotate270:
	default:
		return g, fmt.Errorf("invalid rotation %d", req.Rotation)
	}
	if !(req.ScaleX > 0) || !(req.ScaleY > 0) {
		return g, fmt.Errorf("invalid scale %v/%v", req.ScaleX, req.ScaleY)
	}

	if in.PicWidth <= 0 || in.PicHeight <= 0 || in.BlockWidth <= 0 || in.BlockHeight <= 0 {
		return g, fmt.Errorf("invalid input geometry %dx%d block %dx%d",
			in.PicWidth, in.PicHeight, in.BlockWidth, in.BlockHeight)
	}
	if in.BlockOffsetX < 0 || in.BlockOffsetY < 0 ||
		in.BlockOffsetX+in.BlockWidth > in.PicWidth || in.BlockOffsetY+in.BlockHeight > in.PicHeight {
		return g, errors.New("input block outside picture")
	}
	if need := in.PicWidth * in.PicHeight * display.BytesPerPixel; len(in.Buffer) < need {
		return g, fmt.Errorf("input buffer %d bytes, need %d", len(in.Buffer), need)
	}

	g.scaledW = int(math.Round(float64(in.BlockWidth) * float64(req.ScaleX)))
	g.scaledH = int(math.Round(float64(in.BlockHeight) * float64(req.ScaleY)))
	if g.scaledW <= 0 || g.scaledH <= 0 {
		return g, errors.New("scaled block is empty")
	}
	g.outW, g.outH = g.scaledW, g.scaledH
	if req.Rotation.SwapsAxes() {
		g.outW, g.outH = g.scaledH, g.scaledW
	}

	if out.PicWidth <= 0 || out.PicHeight <= 0 || out.BlockOffsetX < 0 || out.BlockOffsetY < 0 ||
		out.BlockOffsetX+g.outW > out.PicWidth || out.BlockOffsetY+g.outH > out.PicHeight {
		return g, fmt.Errorf("output block %dx%d does not fit picture %dx%d",
			g.outW, g.outH, out.PicWidth, out.PicHeight)
	}
	if need := out.PicWidth * out.PicHeight * display.BytesPerPixel; len(out.Buffer) < need {
		return g, fmt.Errorf("output buffer %d bytes, need %d", len(out.Buffer), need)
	}
	return g, nil
}

func execute(req *display.SRMRequest, g geometry) {
	in, out := req.In, req.Out
	sx, sy := float64(req.ScaleX), float64(req.ScaleY)

	for oy := 0; oy < g.outH; oy++ {
		my := oy
		if req.MirrorY {
			my = g.outH - 1 - oy
		}
		dstRow := ((out.BlockOffsetY+oy)*out.PicWidth + out.BlockOffsetX) * display.BytesPerPixel

		for ox := 0; ox < g.outW; ox++ {
			mx := ox
			if req.MirrorX {
				mx = g.outW - 1 - ox
			}

			// Undo the counter-clockwise rotation into scaled-block coordinates.
			var bx, by int
			switch req.Rotation {
			case display.Rotate90:
				bx, by = g.scaledW-1-my, mx
			case display.Rotate180:
				bx, by = g.scaledW-1-mx, g.scaledH-1-my
			case display.Rotate270:
				bx, by = my, g.scaledH-1-mx
			default:
				bx, by = mx, my
			}

			srcX := in.BlockOffsetX + min(int(float64(bx)/sx), in.BlockWidth-1)
			srcY := in.BlockOffsetY + min(int(float64(by)/sy), in.BlockHeight-1)
			src := (srcY*in.PicWidth + srcX) * display.BytesPerPixel

			p := uint16(in.Buffer[src]) | uint16(in.Buffer[src+1])<<8
			if req.RGBSwap {
				p = p&0x07E0 | p>>11 | (p&0x1F)<<11
			}
			dst := dstRow + ox*display.BytesPerPixel
			if req.ByteSwap {
				out.Buffer[dst], out.Buffer[dst+1] = byte(p>>8), byte(p)
			} else {
				out.Buffer[dst], out.Buffer[dst+1] = byte(p), byte(p>>8)
			}
		}
	}
}
