package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/logging"
	"github.com/smazurov/camdisplay/internal/platform"
	"github.com/spf13/cobra"
)

// ProbeResult is the outcome of one transform round trip.
type ProbeResult struct {
	Orientation display.Orientation
	Duration    time.Duration
	Err         error
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var mode string
	var width, height, iterations int
	var memoryLimit int

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check display platform support and transform engine",
		Long: `Detects the display platform, allocates frame buffers and runs every rotation ` +
			`through the transform engine, verifying that each result maps back onto the source frame.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text", History: -1})
			logger := logging.GetLogger("probe")

			m, err := platform.ParseMode(mode)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}

			p := platform.Detect(platform.Options{Mode: m, MemoryLimit: memoryLimit}, logger)
			fmt.Printf("Board:    %s\n", platform.BoardModel())
			fmt.Printf("Platform: %s\n", p.Name())
			if err := p.Check(); err != nil {
				fmt.Printf("Status:   unsupported (%v)\n", err)
				os.Exit(1)
			}
			fmt.Printf("Engine:   %s\n\n", p.Accelerator().Name())

			source := display.Resolution{Width: width, Height: height}
			results, err := RunProbe(context.Background(), p, source, iterations)
			if err != nil {
				fmt.Printf("Probe failed: %v\n", err)
				os.Exit(1)
			}

			failed := 0
			for _, r := range results {
				status := "ok"
				if r.Err != nil {
					status = "FAIL: " + r.Err.Error()
					failed++
				}
				fmt.Printf("  rotate %-4s mirror_x=%-5t mirror_y=%-5t %10s  %s\n",
					r.Orientation.Rotation, r.Orientation.MirrorX, r.Orientation.MirrorY, r.Duration, status)
			}
			if failed > 0 {
				fmt.Printf("\n%d of %d orientations failed\n", failed, len(results))
				os.Exit(1)
			}
			fmt.Printf("\nAll %d orientations passed at %s\n", len(results), source)
		},
	}

	cmd.Flags().StringVar(&mode, "platform", "auto", "Platform mode (auto, direct, unsupported)")
	cmd.Flags().IntVar(&width, "width", 320, "Probe frame width")
	cmd.Flags().IntVar(&height, "height", 240, "Probe frame height")
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 10, "Transforms timed per orientation")
	cmd.Flags().IntVar(&memoryLimit, "memory-limit", 0, "Allocator limit in bytes (0 for none)")
	return cmd
}

// probeOrientations covers every rotation plus each mirror on its own.
var probeOrientations = []display.Orientation{
	{Rotation: display.Rotate0, MirrorX: true},
	{Rotation: display.Rotate0, MirrorY: true},
	{Rotation: display.Rotate90},
	{Rotation: display.Rotate180},
	{Rotation: display.Rotate270},
	{Rotation: display.Rotate90, MirrorX: true},
}

// RunProbe transforms a generated frame through every probe orientation and
// back with the inverse transform, checking the result matches the source.
// Duration is the mean forward transform time over iterations.
func RunProbe(ctx context.Context, p display.Platform, source display.Resolution, iterations int) ([]ProbeResult, error) {
	if !source.Valid() {
		return nil, display.NewError(display.ErrCodeInvalidConfig, "probe resolution must be positive", nil)
	}
	if iterations <= 0 {
		iterations = 1
	}

	alloc := p.Allocator()
	size := source.FrameSize()
	bufs := make([][]byte, 0, 3)
	defer func() {
		for _, b := range bufs {
			_ = alloc.Free(b)
		}
	}()
	for range 3 {
		b, err := alloc.Alloc(size, 64)
		if err != nil {
			return nil, display.NewError(display.ErrCodeBufferAllocation, "failed to allocate probe buffer", err)
		}
		bufs = append(bufs, b)
	}
	src, mid, back := bufs[0], bufs[1], bufs[2]
	for k := range size / display.BytesPerPixel {
		v := uint16(k * 40503)
		src[2*k], src[2*k+1] = byte(v), byte(v>>8)
	}

	client, err := p.Accelerator().Register(display.ClientConfig{
		Operation:              display.OperationSRM,
		MaxPendingTransactions: 1,
	})
	if err != nil {
		return nil, display.NewError(display.ErrCodeAcceleratorRegistration, "failed to register probe client", err)
	}
	defer func() { _ = client.Unregister() }()

	results := make([]ProbeResult, 0, len(probeOrientations))
	for _, o := range probeOrientations {
		res := ProbeResult{Orientation: o}

		forward := display.NewSRMRequest(src, mid, source, o)
		start := time.Now()
		for range iterations {
			if res.Err = client.Transform(ctx, forward); res.Err != nil {
				break
			}
		}
		res.Duration = time.Since(start) / time.Duration(iterations)

		if res.Err == nil {
			res.Err = client.Transform(ctx, display.NewSRMRequest(mid, back, o.Effective(source), inverse(o)))
		}
		if res.Err == nil && !bytes.Equal(src, back) {
			res.Err = fmt.Errorf("inverse transform does not restore the source frame")
		}
		results = append(results, res)
	}
	return results, nil
}

// inverse returns the orientation that undoes o. Mirrors apply after the
// rotation, so across a quarter turn they move to the other axis.
func inverse(o display.Orientation) display.Orientation {
	inv := display.Orientation{
		Rotation: (360 - o.Rotation) % 360,
		MirrorX:  o.MirrorX,
		MirrorY:  o.MirrorY,
	}
	if o.Rotation.SwapsAxes() {
		inv.MirrorX, inv.MirrorY = o.MirrorY, o.MirrorX
	}
	return inv
}
