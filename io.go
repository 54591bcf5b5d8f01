package comserial

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"
)

// LevelTrace sits below slog.LevelDebug and carries hex dumps of the bytes
// moved by ReadBuffer and WriteBuffer.
const LevelTrace = slog.Level(-8)

// WriteBuffer writes all of p, waiting at most WriteTimeout for the device
// to become writable before each transfer. It returns len(p) on success.
// When a wait expires it returns the bytes written so far together with a
// *TimeoutError. Any other failure returns 0 and an ErrRuntime error.
func (s *Session) WriteBuffer(p []byte) (int, error) {
	return s.transfer(DirWrite, p, s.writeTimeout)
}

// ReadBuffer fills p, waiting at most ReadTimeout for data before each
// transfer. Partial reads are reported like WriteBuffer does; a zero-byte
// read on a readable descriptor also counts as a timeout.
func (s *Session) ReadBuffer(p []byte) (int, error) {
	return s.transfer(DirRead, p, s.readTimeout)
}

// transfer runs the wait/transfer loop shared by both directions. The
// timeout is sampled once per call.
func (s *Session) transfer(dir Direction, p []byte, timeout time.Duration) (int, error) {
	if len(p) == 0 {
		return 0, ErrInvalidInput
	}
	if s.fd == invalidHandle {
		return 0, ErrClosed
	}

	events := int16(unix.POLLIN)
	if dir == DirWrite {
		events = unix.POLLOUT
	}

	done := 0
	for done < len(p) {
		ready, err := s.wait(events, timeout)
		if err != nil {
			err = runtimeError("fail to select", err)
			s.fail(dir, err)
			return 0, err
		}
		if !ready {
			return s.timedOut(dir, p, done)
		}

		var n int
		if dir == DirWrite {
			n, err = unix.Write(s.fd, p[done:])
		} else {
			n, err = unix.Read(s.fd, p[done:])
		}
		if err != nil {
			// The descriptor is non-blocking; a spurious wakeup goes back to waiting.
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			err = runtimeError("fail to "+string(dir), err)
			s.fail(dir, err)
			return 0, err
		}
		if n == 0 && dir == DirRead {
			return s.timedOut(dir, p, done)
		}
		done += n
	}

	s.dump(dir, p)
	s.obs.Transferred(dir, done)
	return done, nil
}

// wait blocks until the descriptor reports events or timeout elapses.
// Signal interruptions resume the wait with the time left.
func (s *Session) wait(events int16, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	remaining := timeout
	for {
		fds := []unix.PollFd{{Fd: int32(s.fd), Events: events}}
		n, err := unix.Poll(fds, pollMillis(remaining))
		if errors.Is(err, unix.EINTR) {
			remaining = max(time.Until(deadline), 0)
			continue
		}
		if err != nil {
			return false, err
		}
		if n > 0 && fds[0].Revents&unix.POLLNVAL != 0 {
			return false, unix.EBADF
		}
		return n > 0, nil
	}
}

// pollMillis rounds d up to whole milliseconds so short timeouts still wait.
func pollMillis(d time.Duration) int {
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	return int(ms)
}

func (s *Session) timedOut(dir Direction, p []byte, done int) (int, error) {
	s.log.Warn("serial_timeout", "op", string(dir), "transferred", done, "requested", len(p))
	s.dump(dir, p[:done])
	s.obs.TimedOut(dir, done)
	return done, &TimeoutError{Op: string(dir), Transferred: done}
}

func (s *Session) fail(dir Direction, err error) {
	s.log.Error("serial_io_failed", "op", string(dir), "error", err)
	s.obs.Failed(dir, err)
}

func (s *Session) dump(dir Direction, p []byte) {
	if len(p) == 0 || !s.log.Enabled(context.Background(), LevelTrace) {
		return
	}
	s.log.Log(context.Background(), LevelTrace, "serial_dump",
		"op", string(dir), "bytes", len(p), "dump", hex.Dump(p))
}
