package comserial

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Defaults applied by Open for zero-valued Config fields.
const (
	DefaultSpeed    = 19200
	DefaultDataSize = 8
	DefaultStopSize = 1
	DefaultParity   = ParityNone
)

// Parity values, stored lower-case.
const (
	ParityNone byte = 'n'
	ParityEven byte = 'e'
	ParityOdd  byte = 'o'
)

// speedToUnix maps a supported baud rate to its termios constant.
var speedToUnix = map[int]uint32{
	50:     unix.B50,
	75:     unix.B75,
	110:    unix.B110,
	134:    unix.B134,
	150:    unix.B150,
	200:    unix.B200,
	300:    unix.B300,
	600:    unix.B600,
	1200:   unix.B1200,
	1800:   unix.B1800,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

var dataSizeToUnix = map[int]uint32{
	5: unix.CS5,
	6: unix.CS6,
	7: unix.CS7,
	8: unix.CS8,
}

// Speeds returns the supported baud rates in ascending order.
func Speeds() []int {
	return []int{50, 75, 110, 134, 150, 200, 300, 600, 1200, 1800, 2400,
		4800, 9600, 19200, 38400, 57600, 115200, 230400}
}

func checkSpeed(speed int) error {
	if _, ok := speedToUnix[speed]; !ok {
		return fmt.Errorf("%w (%d)", ErrInvalidSpeed, speed)
	}
	return nil
}

func checkDataSize(size int) error {
	if _, ok := dataSizeToUnix[size]; !ok {
		return fmt.Errorf("%w (%d)", ErrInvalidDataSize, size)
	}
	return nil
}

func checkStopSize(size int) error {
	if size != 1 && size != 2 {
		return fmt.Errorf("%w (%d)", ErrInvalidStopSize, size)
	}
	return nil
}

// normalizeParity lower-cases p and rejects anything outside n/e/o.
func normalizeParity(p byte) (byte, error) {
	switch p {
	case 'n', 'N':
		return ParityNone, nil
	case 'e', 'E':
		return ParityEven, nil
	case 'o', 'O':
		return ParityOdd, nil
	}
	return 0, fmt.Errorf("%w (%q)", ErrInvalidParity, p)
}

// lineOptions is the validated framing of the line. The termios record sent
// to the kernel is always rebuilt from it in full.
type lineOptions struct {
	speed    int
	dataSize int
	stopSize int
	parity   byte
}

// validate checks fields in the order speed, data size, stop size, parity
// and returns a copy with parity normalized.
func (o lineOptions) validate() (lineOptions, error) {
	if err := checkSpeed(o.speed); err != nil {
		return o, err
	}
	if err := checkDataSize(o.dataSize); err != nil {
		return o, err
	}
	if err := checkStopSize(o.stopSize); err != nil {
		return o, err
	}
	p, err := normalizeParity(o.parity)
	if err != nil {
		return o, err
	}
	o.parity = p
	return o, nil
}

// termios builds the raw-mode line discipline for o. Input, output and
// local processing flags are all cleared: no canonical mode, echo, signals,
// extended processing, break or parity marking, CR/NL mapping, or software
// and hardware flow control.
func (o lineOptions) termios() *unix.Termios {
	t := &unix.Termios{}

	speed := speedToUnix[o.speed]
	t.Cflag = unix.CLOCAL | unix.CREAD | speed | dataSizeToUnix[o.dataSize]
	t.Ispeed = speed
	t.Ospeed = speed

	if o.stopSize == 2 {
		t.Cflag |= unix.CSTOPB
	}
	switch o.parity {
	case ParityEven:
		t.Cflag |= unix.PARENB
	case ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	}

	// Polling handles timing; VMIN/VTIME only need raw-mode values.
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	return t
}
