// Package drmhelper is the client side of the DRM helper protocol of
// spec.md §6: a Unix-domain socket request/response exchange that fetches
// DRM plane descriptors (each carrying a dma-buf file descriptor) from an
// out-of-scope helper subprocess. The helper itself, and its DRM/plane
// query internals, remain the external collaborator spec.md §1 names;
// this package only implements the wire contract consumed by the DMA-BUF
// video source (internal/dmabuf).
//
// Grounded on the SCM_RIGHTS request/response shape of
// _examples/helixml-helix/api/pkg/drm/client.go (dial a Unix socket,
// binary.Write a fixed request, ReadMsgUnix for the response plus
// ancillary data, unix.ParseSocketControlMessage/ParseUnixRights to
// recover the descriptors), promoted to use golang.org/x/sys/unix's
// Socket/Sendmsg/PpollWithSignalMask directly so the 1s timeout and the
// SIGCHLD-unblocking signal mask of spec.md §5/§6 can be enforced
// exactly, which net.UnixConn does not expose.
package drmhelper

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/shadow-cast/shadow-cast/internal/errkind"
)

// DefaultSocketPath is the well-known address of the helper (spec.md §6).
const DefaultSocketPath = "/tmp/shadow-cast.sock"

// maxPlaneDescriptors bounds the response's fixed descriptor array.
const maxPlaneDescriptors = 8

// requestTimeout is the fixed send/receive timeout of spec.md §5.
const requestTimeout = 1 * time.Second

const (
	requestGetPlanes uint32 = 1
	requestStop      uint32 = 2
)

// Plane flag bits (spec.md §6).
const (
	FlagIsCursor   uint32 = 1 << 0
	FlagIsCombined uint32 = 1 << 1
)

// PlaneDescriptor mirrors the wire struct of spec.md §6. FD is owned by
// the receiver once returned from GetPlanes and must be closed by the
// caller.
type PlaneDescriptor struct {
	FD           int32
	Width        uint32
	Height       uint32
	Pitch        uint32
	Offset       uint32
	PixelFormat  uint32
	Modifier     uint64
	ConnectorID  uint32
	Flags        uint32
	X            int32
	Y            int32
	SrcW         int32
	SrcH         int32
}

// IsCursor reports whether the IS_CURSOR flag bit is set.
func (p PlaneDescriptor) IsCursor() bool { return p.Flags&FlagIsCursor != 0 }

// IsCombined reports whether the IS_COMBINED flag bit is set.
func (p PlaneDescriptor) IsCombined() bool { return p.Flags&FlagIsCombined != 0 }

// wirePlaneDescriptor is PlaneDescriptor without the FD, which travels as
// SCM_RIGHTS ancillary data rather than as part of the fixed payload.
type wirePlaneDescriptor struct {
	Width       uint32
	Height      uint32
	Pitch       uint32
	Offset      uint32
	PixelFormat uint32
	Modifier    uint64
	ConnectorID uint32
	Flags       uint32
	X           int32
	Y           int32
	SrcW        int32
	SrcH        int32
}

type wireRequest struct {
	Type uint32
}

type wireResponseHeader struct {
	Result  uint32
	NumFDs  uint32
}

// Client is a connected or reconnecting DRM helper client.
type Client struct {
	socketPath string
}

// New builds a client for the helper listening at socketPath.
func New(socketPath string) *Client {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Client{socketPath: socketPath}
}

// GetPlanes requests one set of plane descriptors from the helper,
// enforcing the fixed 1s send/receive timeout via ppoll (spec.md §5/§6).
// On success, the caller owns every returned descriptor's FD and must
// close it.
func (c *Client) GetPlanes() ([]PlaneDescriptor, error) {
	fd, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)

	if err := c.send(fd, requestGetPlanes); err != nil {
		return nil, err
	}
	return c.receivePlanes(fd)
}

// Stop asks the helper to terminate; no response is read.
func (c *Client) Stop() error {
	fd, err := c.dial()
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return c.send(fd, requestStop)
}

func (c *Client) dial() (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, errkind.New(errkind.IoError, "drmhelper.dial", err)
	}
	addr := &unix.SockaddrUnix{Name: c.socketPath}
	if err := unix.Connect(fd, addr); err != nil {
		unix.Close(fd)
		return -1, errkind.New(errkind.IoError, "drmhelper.dial", err)
	}
	return fd, nil
}

func (c *Client) send(fd int, reqType uint32) error {
	if err := waitWritable(fd); err != nil {
		return err
	}
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, wireRequest{Type: reqType})
	if err := unix.Sendmsg(fd, buf.Bytes(), nil, nil, 0); err != nil {
		return errkind.New(errkind.IoError, "drmhelper.send", err)
	}
	return nil
}

func (c *Client) receivePlanes(fd int) ([]PlaneDescriptor, error) {
	if err := waitReadable(fd); err != nil {
		return nil, err
	}

	const headerSize = 8 // result + num_fds
	const descSize = 52  // sizeof(wirePlaneDescriptor), tightly packed
	payloadSize := headerSize + maxPlaneDescriptors*descSize

	buf := make([]byte, payloadSize)
	oob := make([]byte, unix.CmsgSpace(maxPlaneDescriptors*4))

	n, oobn, _, _, err := unix.Recvmsg(fd, buf, oob, 0)
	if err != nil {
		return nil, errkind.New(errkind.IoError, "drmhelper.receive", err)
	}
	if n < headerSize {
		return nil, errkind.New(errkind.IoError, "drmhelper.receive", fmt.Errorf("short response: %d bytes", n))
	}

	var header wireResponseHeader
	r := bytes.NewReader(buf[:n])
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errkind.New(errkind.IoError, "drmhelper.receive", err)
	}
	if header.Result != 0 {
		return nil, errkind.New(errkind.CaptureFailure, "drmhelper.receive",
			fmt.Errorf("helper returned result=%d", header.Result))
	}
	if header.NumFDs > maxPlaneDescriptors {
		return nil, errkind.New(errkind.IoError, "drmhelper.receive",
			fmt.Errorf("helper reported %d fds, max is %d", header.NumFDs, maxPlaneDescriptors))
	}

	fds, err := extractRights(oob[:oobn])
	if err != nil {
		return nil, errkind.New(errkind.IoError, "drmhelper.receive", err)
	}
	if uint32(len(fds)) < header.NumFDs {
		for _, extra := range fds {
			unix.Close(extra)
		}
		return nil, errkind.New(errkind.IoError, "drmhelper.receive",
			fmt.Errorf("expected %d fds via SCM_RIGHTS, got %d", header.NumFDs, len(fds)))
	}

	descriptors := make([]PlaneDescriptor, 0, header.NumFDs)
	for i := uint32(0); i < header.NumFDs; i++ {
		var w wirePlaneDescriptor
		if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
			for _, extra := range fds {
				unix.Close(extra)
			}
			return nil, errkind.New(errkind.IoError, "drmhelper.receive", err)
		}
		descriptors = append(descriptors, PlaneDescriptor{
			FD:          int32(fds[i]),
			Width:       w.Width,
			Height:      w.Height,
			Pitch:       w.Pitch,
			Offset:      w.Offset,
			PixelFormat: w.PixelFormat,
			Modifier:    w.Modifier,
			ConnectorID: w.ConnectorID,
			Flags:       w.Flags,
			X:           w.X,
			Y:           w.Y,
			SrcW:        w.SrcW,
			SrcH:        w.SrcH,
		})
	}

	// Close any fds the helper sent beyond what it claimed in num_fds.
	for _, extra := range fds[header.NumFDs:] {
		unix.Close(extra)
	}

	return descriptors, nil
}

func extractRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}
	var fds []int
	for _, scm := range scms {
		got, err := unix.ParseUnixRights(&scm)
		if err != nil {
			continue
		}
		fds = append(fds, got...)
	}
	return fds, nil
}

// waitReadable/waitWritable enforce spec.md §5's fixed 1s timeout via
// ppoll with a signal mask that unblocks SIGCHLD, exactly as spec.md §6
// describes, so a SIGCHLD delivered while blocked (e.g. the helper dying)
// interrupts the wait rather than being swallowed.
func waitReadable(fd int) error { return waitFor(fd, unix.POLLIN) }
func waitWritable(fd int) error { return waitFor(fd, unix.POLLOUT) }

func waitFor(fd int, events int16) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	timeout := unix.NsecToTimespec(requestTimeout.Nanoseconds())

	var sigset unix.Sigset_t
	unix.SigFillSet(&sigset)
	sigdelset(&sigset, unix.SIGCHLD)

	n, err := unix.PpollWithSignalMask(fds, &timeout, &sigset)
	if err != nil {
		return errkind.New(errkind.IoError, "drmhelper.wait", err)
	}
	if n == 0 {
		return errkind.New(errkind.Timeout, "drmhelper.wait", fmt.Errorf("timed out after %s", requestTimeout))
	}
	return nil
}

// sigdelset clears one signal from a full signal mask; x/sys/unix exposes
// SigFillSet/SigAddSet but not SigDelSet, so this mirrors glibc's
// sigdelset bit-clear directly on the mask's word array.
func sigdelset(set *unix.Sigset_t, sig unix.Signal) {
	const bitsPerWord = 64 // unix.Sigset_t.Val elements are uint64 on linux
	idx := (int(sig) - 1) / bitsPerWord
	bit := uint64(1) << uint((int(sig)-1)%bitsPerWord)
	set.Val[idx] &^= bit
}
