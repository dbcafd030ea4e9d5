package display

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder captures the order of calls across the source and the sink.
type recorder struct {
	calls []string
}

func (r *recorder) add(call string) {
	if r != nil {
		r.calls = append(r.calls, call)
	}
}

type fakeSource struct {
	rec       *recorder
	width     int
	height    int
	streaming bool
	startErr  error
	acquireOK bool
	raw       []byte
	copyBytes int // negative copies len(dst)
	seq       uint32

	acquireSeqs []uint32
	copies      int
	releases    int
	whiteBal    []bool
}

func newFakeSource(rec *recorder, width, height int) *fakeSource {
	return &fakeSource{
		rec:       rec,
		width:     width,
		height:    height,
		streaming: true,
		acquireOK: true,
		raw:       make([]byte, width*height*BytesPerPixel),
		copyBytes: -1,
	}
}

func (s *fakeSource) ImageWidth() int   { return s.width }
func (s *fakeSource) ImageHeight() int  { return s.height }
func (s *fakeSource) IsStreaming() bool { return s.streaming }

func (s *fakeSource) StartStreaming() error {
	s.rec.add("start")
	if s.startErr != nil {
		return s.startErr
	}
	s.streaming = true
	return nil
}

func (s *fakeSource) AcquireFrame(seq uint32) bool {
	s.rec.add("acquire")
	s.acquireSeqs = append(s.acquireSeqs, seq)
	if !s.acquireOK {
		return false
	}
	s.seq++
	return true
}

func (s *fakeSource) ImageData() []byte {
	s.rec.add("raw")
	return s.raw
}

func (s *fakeSource) CopyFrameRGB565(dst []byte, applyWhiteBalance bool) int {
	s.rec.add("copy")
	s.copies++
	s.whiteBal = append(s.whiteBal, applyWhiteBalance)
	n := s.copyBytes
	if n < 0 || n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = 0xAB
	}
	return n
}

func (s *fakeSource) CurrentSequence() uint32 { return s.seq }

func (s *fakeSource) ReleaseFrame() {
	s.rec.add("release")
	s.releases++
}

type fakeSink struct {
	rec         *recorder
	buf         []byte
	width       int
	height      int
	format      PixelFormat
	sets        int
	invalidates int
	refreshes   int
}

func (k *fakeSink) SetBuffer(buf []byte, width, height int, format PixelFormat) {
	k.rec.add("set_buffer")
	k.buf = buf
	k.width = width
	k.height = height
	k.format = format
	k.sets++
}

func (k *fakeSink) Invalidate() {
	k.rec.add("invalidate")
	k.invalidates++
}

func (k *fakeSink) Refresh() {
	k.rec.add("refresh")
	k.refreshes++
}

type fakeAllocator struct {
	failOn    int // 1-based allocation index that fails, 0 never
	allocs    int
	frees     int
	sizes     []int
	alignment []int
}

var errOutOfMemory = errors.New("out of memory")

func (a *fakeAllocator) Alloc(size, alignment int) ([]byte, error) {
	a.allocs++
	if a.failOn == a.allocs {
		return nil, errOutOfMemory
	}
	a.sizes = append(a.sizes, size)
	a.alignment = append(a.alignment, alignment)
	return make([]byte, size), nil
}

func (a *fakeAllocator) Free(_ []byte) error {
	a.frees++
	return nil
}

type fakeClient struct {
	transformErr error
	requests     []SRMRequest
	unregisters  int
}

func (c *fakeClient) Transform(_ context.Context, req *SRMRequest) error {
	c.requests = append(c.requests, *req)
	if c.transformErr != nil {
		return c.transformErr
	}
	for i := range req.Out.Buffer {
		req.Out.Buffer[i] = 0xCD
	}
	return nil
}

func (c *fakeClient) Unregister() error {
	c.unregisters++
	return nil
}

type fakeAccelerator struct {
	registerErr error
	client      *fakeClient
	configs     []ClientConfig
}

func (a *fakeAccelerator) Name() string { return "fake" }

func (a *fakeAccelerator) Register(cfg ClientConfig) (TransformClient, error) {
	a.configs = append(a.configs, cfg)
	if a.registerErr != nil {
		return nil, a.registerErr
	}
	return a.client, nil
}

type fakePlatform struct {
	checkErr error
	alloc    *fakeAllocator
	accel    *fakeAccelerator
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		alloc: &fakeAllocator{},
		accel: &fakeAccelerator{client: &fakeClient{}},
	}
}

func (p *fakePlatform) Name() string             { return "fake" }
func (p *fakePlatform) Check() error             { return p.checkErr }
func (p *fakePlatform) Allocator() Allocator     { return p.alloc }
func (p *fakePlatform) Accelerator() Accelerator { return p.accel }
