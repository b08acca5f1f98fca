package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"voicedesk/internal/application"
	"voicedesk/internal/domain"
)

// FileCapture replays a WAV file as if it were a microphone. After the file
// is exhausted it keeps producing silence until stopped, the way a quiet room
// would.
type FileCapture struct {
	path      string
	frameSize int
	realtime  bool
	logger    *slog.Logger
}

func NewFileCapture(path string, frameSize int, realtime bool, logger *slog.Logger) *FileCapture {
	if frameSize <= 0 {
		frameSize = 1024
	}
	return &FileCapture{
		path:      path,
		frameSize: frameSize,
		realtime:  realtime,
		logger:    logger,
	}
}

func (f *FileCapture) Name() string {
	return "file"
}

func (f *FileCapture) StartCapture(_ context.Context, format domain.AudioFormat) (application.CaptureStream, error) {
	pcm, fileFormat, err := ReadWAV(f.path)
	if err != nil {
		return nil, domain.DeviceError("opening input file", err)
	}
	if fileFormat.SampleRate != format.SampleRate || fileFormat.Channels != format.Channels {
		return nil, domain.DeviceError("opening input file", fmt.Errorf("%s is %d Hz with %d channels, want %d Hz with %d",
			f.path, fileFormat.SampleRate, fileFormat.Channels, format.SampleRate, format.Channels))
	}

	chunk := f.frameSize * format.Channels * 2
	interval := time.Millisecond
	if f.realtime {
		interval = time.Duration(f.frameSize) * time.Second / time.Duration(format.SampleRate)
	}

	s := &fileStream{
		pcm:      pcm,
		chunk:    chunk,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		drained:  make(chan struct{}),
	}
	go s.feed()

	f.logger.Info("file capture started", "path", f.path, "bytes", len(pcm))
	return s, nil
}

type fileStream struct {
	pcm      []byte
	chunk    int
	interval time.Duration

	mu       sync.Mutex
	fn       func([]byte)
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
	drained  chan struct{}
}

func (s *fileStream) OnFrame(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
}

func (s *fileStream) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.done
	})
	return nil
}

// Drained is closed once every byte of the file has been delivered.
func (s *fileStream) Drained() <-chan struct{} {
	return s.drained
}

func (s *fileStream) feed() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	silence := make([]byte, s.chunk)
	pos := 0
	drained := false

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		fn := s.fn
		s.mu.Unlock()
		if fn == nil {
			continue
		}

		if pos >= len(s.pcm) {
			if !drained {
				drained = true
				close(s.drained)
			}
			fn(silence)
			continue
		}

		end := min(pos+s.chunk, len(s.pcm))
		frame := make([]byte, end-pos)
		copy(frame, s.pcm[pos:end])
		pos = end
		fn(frame)
	}
}

// FileSink "plays" audio by writing it to a WAV file in dir.
type FileSink struct {
	dir    string
	logger *slog.Logger
}

func NewFileSink(dir string, logger *slog.Logger) *FileSink {
	return &FileSink{dir: dir, logger: logger}
}

func (s *FileSink) Name() string {
	return "file"
}

func (s *FileSink) Play(_ context.Context, res *domain.AudioResource) error {
	path, err := saveResource(s.dir, res)
	if err != nil {
		return domain.PlaybackError("writing output file", err)
	}
	s.logger.Info("response audio written", "path", path, "duration", res.Duration)
	return nil
}

func saveResource(dir string, res *domain.AudioResource) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(dir, res.ID+".wav")
	if err := WriteWAV(path, res.Format, res.Data); err != nil {
		return "", err
	}
	return path, nil
}
