// Package comserial provides timed, buffered I/O on a Linux serial (TTY)
// device.
//
// A Session owns one open TTY configured in raw mode. Its speed, data size,
// stop size and parity are validated before they reach the kernel, and
// every change re-commits the full line discipline so the device always
// matches what the getters report.
//
// Features:
//   - Raw syscall-based serial I/O on Linux, no internal buffering
//   - Validated configuration: 50 to 230400 bps, 5 to 8 data bits,
//     1 or 2 stop bits, none/even/odd parity
//   - Buffer-sized reads and writes bounded by per-direction timeouts
//   - Partial progress reported through *TimeoutError
//   - Injected slog logger and transfer Observer
//   - PTY-based tests
//
// This package does **not** support Windows or non-TTY files.
//
// Example usage:
//
//	s, err := comserial.Open(comserial.Config{
//	    Device: "/dev/ttyUSB0",
//	    Speed:  115200,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	s.SetReadTimeout(500 * time.Millisecond)
//
//	if _, err := s.WriteBuffer([]byte("C,START\r\n")); err != nil {
//	    log.Println("write failed:", err)
//	}
//
//	buf := make([]byte, 16)
//	n, err := s.ReadBuffer(buf)
//	if errors.Is(err, comserial.ErrTimeout) {
//	    log.Printf("only %d bytes before timeout", n)
//	}
//
// The handle subpackage wraps a Session behind nil-tolerant calls that
// return integer result codes instead of errors.
package comserial
