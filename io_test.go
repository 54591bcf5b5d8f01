package comserial

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadBuffer_RoundTrip(t *testing.T) {
	for _, size := range []int{1, 4, 255, 4096, 16384} {
		master, _, s := openPair(t, Config{Speed: 115200})

		want := randomBytes(size)
		writeErr := make(chan error, 1)
		go func() {
			_, err := master.Write(want)
			writeErr <- err
		}()

		got := make([]byte, size)
		n, err := s.ReadBuffer(got)
		require.NoError(t, err, "size %d", size)
		require.Equal(t, size, n)
		require.Equal(t, want, got)
		require.NoError(t, <-writeErr)
	}
}

func TestWriteBuffer_RoundTrip(t *testing.T) {
	for _, size := range []int{1, 4, 255, 4096, 16384} {
		master, _, s := openPair(t, Config{})

		got := make([]byte, size)
		readErr := make(chan error, 1)
		go func() {
			_, err := io.ReadFull(master, got)
			readErr <- err
		}()

		want := randomBytes(size)
		n, err := s.WriteBuffer(want)
		require.NoError(t, err, "size %d", size)
		require.Equal(t, size, n)

		select {
		case err := <-readErr:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for master to receive data")
		}
		require.Equal(t, want, got)
	}
}

func TestReadBuffer_TimeoutNothingWritten(t *testing.T) {
	_, _, s := openPair(t, Config{})
	s.SetReadTimeout(50 * time.Millisecond)

	start := time.Now()
	n, err := s.ReadBuffer(make([]byte, 4))
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, 0, n)
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	require.Equal(t, 0, te.Transferred)
	require.Equal(t, "read", te.Op)
	require.True(t, te.Timeout())
}

func TestReadBuffer_TimeoutPartial(t *testing.T) {
	master, _, s := openPair(t, Config{})
	s.SetReadTimeout(100 * time.Millisecond)

	_, err := master.Write([]byte("ping"))
	require.NoError(t, err)

	buf := bytes.Repeat([]byte{0xAA}, 8)
	n, err := s.ReadBuffer(buf)
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, 4, n)

	transferred, ok := TransferredBefore(err)
	require.True(t, ok)
	require.Equal(t, 4, transferred)
	require.Equal(t, []byte("ping"), buf[:4])
	require.Equal(t, bytes.Repeat([]byte{0xAA}, 4), buf[4:])
}

func TestReadBuffer_ExactThenTimeout(t *testing.T) {
	master, _, s := openPair(t, Config{})
	s.SetReadTimeout(100 * time.Millisecond)

	_, err := master.Write([]byte("abcd"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := s.ReadBuffer(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte("abcd"), buf)

	n, err = s.ReadBuffer(buf)
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, 0, n)
	require.Equal(t, []byte("abcd"), buf)
}

func TestBuffer_InvalidInput(t *testing.T) {
	master, _, s := openPair(t, Config{})
	obs := &recordingObserver{}
	s.obs = obs

	n, err := s.WriteBuffer(nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Zero(t, n)
	n, err = s.WriteBuffer([]byte{})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Zero(t, n)
	n, err = s.ReadBuffer(nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Zero(t, n)

	// Nothing reached the other end.
	s.SetReadTimeout(10 * time.Millisecond)
	_, err = master.Write([]byte("z"))
	require.NoError(t, err)
	got := make([]byte, 1)
	_, err = s.ReadBuffer(got)
	require.NoError(t, err)
	require.Equal(t, []byte("z"), got)
	require.Equal(t, []string{"ok read 1"}, obs.events())
}

func TestWriteBuffer_PeerClosed(t *testing.T) {
	master, _, s := openPair(t, Config{})
	obs := &recordingObserver{}
	s.obs = obs
	s.SetWriteTimeout(200 * time.Millisecond)

	require.NoError(t, master.Close())

	n, err := s.WriteBuffer([]byte("lost"))
	require.ErrorIs(t, err, ErrRuntime)
	require.NotErrorIs(t, err, ErrTimeout)
	require.Zero(t, n)
	require.Contains(t, err.Error(), "fail to write")
	require.Equal(t, []string{"fail write"}, obs.events())
}

func TestObserver_Notified(t *testing.T) {
	obs := &recordingObserver{}
	master, _, s := openPair(t, Config{Observer: obs})
	s.SetReadTimeout(50 * time.Millisecond)

	_, err := s.WriteBuffer([]byte("abc"))
	require.NoError(t, err)

	_, err = master.Write([]byte("x"))
	require.NoError(t, err)
	_, err = s.ReadBuffer(make([]byte, 2))
	require.ErrorIs(t, err, ErrTimeout)

	require.Equal(t, []string{"ok write 3", "timeout read 1"}, obs.events())
}

func TestTrace_HexDump(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: LevelTrace}))
	master, _, s := openPair(t, Config{Logger: logger})

	_, err := master.Write([]byte("hello"))
	require.NoError(t, err)
	_, err = s.ReadBuffer(make([]byte, 5))
	require.NoError(t, err)

	require.Contains(t, out.String(), "serial_open")
	require.Contains(t, out.String(), "serial_dump")
	require.Contains(t, out.String(), "68 65 6c 6c 6f")
}

func TestPollMillis(t *testing.T) {
	require.Equal(t, 0, pollMillis(0))
	require.Equal(t, 1, pollMillis(time.Microsecond))
	require.Equal(t, 1000, pollMillis(time.Second))
	require.Equal(t, 1501, pollMillis(1500*time.Millisecond+time.Nanosecond))
}

type recordingObserver struct {
	mu  sync.Mutex
	log []string
}

func (r *recordingObserver) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, fmt.Sprintf(format, args...))
}

func (r *recordingObserver) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

func (r *recordingObserver) Transferred(dir Direction, n int) { r.add("ok %s %d", dir, n) }
func (r *recordingObserver) TimedOut(dir Direction, n int)    { r.add("timeout %s %d", dir, n) }
func (r *recordingObserver) Failed(dir Direction, _ error)    { r.add("fail %s", dir) }

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	return b
}
