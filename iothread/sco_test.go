package iothread

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/opd-ai/btaudio/codec"
	"github.com/opd-ai/btaudio/codec/sbc"
	"github.com/opd-ai/btaudio/pcm"
	"github.com/opd-ai/btaudio/sco"
	"github.com/opd-ai/btaudio/transport"
)

// scoFixture is a voice transport with both PCM directions open.
type scoFixture struct {
	tr   *transport.Transport
	peer int // remote side of the link
	spkW int // client side of the speaker FIFO
	micR int // client side of the microphone FIFO
}

func newSCO(t *testing.T, id codec.ID) *scoFixture {
	t.Helper()
	tr, _ := newTransport(t, transport.ProfileSCO, id)
	a, b := socketPair(t)
	spkR, spkW := pipe(t)
	micR, micW := pipe(t)

	tr.SetLink(a, 0, 0)
	tr.Speaker = pcm.NewEndpointFD(spkR)
	tr.Mic = pcm.NewEndpointFD(micW)

	f := &scoFixture{tr: tr, peer: b, spkW: spkW, micR: micR}
	t.Cleanup(func() {
		for _, fd := range []int{f.peer, f.spkW, f.micR} {
			if fd != -1 {
				unix.Close(fd)
			}
		}
	})
	return f
}

func TestSCOCVSD(t *testing.T) {
	f := newSCO(t, codec.CVSD)
	th := start(context.Background(), f.tr, testConfig(), quietLog(), instantTime{})

	// the first packet tells the MTU
	in := bytes.Repeat([]byte{0x11}, 48)
	writeAll(t, f.peer, in)
	assert.Equal(t, in, readFull(t, f.micR, 48))
	_, readMTU, writeMTU := f.tr.Link()
	assert.Equal(t, 48, readMTU)
	assert.Equal(t, 48, writeMTU)

	out := bytes.Repeat([]byte{0x22}, 48)
	writeAll(t, f.spkW, out)
	assert.Equal(t, out, readPacket(t, f.peer))

	th.Cancel()
	assert.ErrorIs(t, waitThread(t, th), context.Canceled)
}

func TestSCOCVSDEndpointClosure(t *testing.T) {
	f := newSCO(t, codec.CVSD)
	th := start(context.Background(), f.tr, testConfig(), quietLog(), instantTime{})

	writeAll(t, f.peer, make([]byte, 48))
	readFull(t, f.micR, 48)

	// losing the microphone keeps the speaker direction alive
	require.NoError(t, unix.Close(f.micR))
	f.micR = -1
	writeAll(t, f.peer, make([]byte, 48))

	out := bytes.Repeat([]byte{0x33}, 48)
	writeAll(t, f.spkW, out)
	assert.Equal(t, out, readPacket(t, f.peer))
	assert.Eventually(t, f.tr.Mic.Closed, time.Second, 5*time.Millisecond)

	select {
	case <-th.Done():
		t.Fatal("loop exited with speaker still open")
	default:
	}

	require.NoError(t, unix.Close(f.spkW))
	f.spkW = -1
	assert.ErrorIs(t, waitThread(t, th), ErrPCMClosed)
}

func TestSCOLinkClosed(t *testing.T) {
	f := newSCO(t, codec.CVSD)
	th := start(context.Background(), f.tr, testConfig(), quietLog(), instantTime{})

	require.NoError(t, unix.Close(f.peer))
	f.peer = -1

	assert.ErrorIs(t, waitThread(t, th), ErrLinkClosed)
	assert.Equal(t, -1, f.tr.BTFD())
}

func TestSCOReleasesLinkWithoutClients(t *testing.T) {
	tr, _ := newTransport(t, transport.ProfileSCO, codec.CVSD)
	a, b := socketPair(t)
	defer unix.Close(b)
	tr.SetLink(a, 48, 48)

	var releases int
	tr.ReleaseLink = func(tr *transport.Transport) error {
		releases++
		return tr.CloseLink()
	}

	th := start(context.Background(), tr, testConfig(), quietLog(), instantTime{})
	assert.Eventually(t, func() bool { return tr.BTFD() == -1 }, time.Second, 5*time.Millisecond)

	th.Cancel()
	assert.ErrorIs(t, waitThread(t, th), context.Canceled)
	assert.Equal(t, 1, releases)
}

func TestSCOAcquiresLinkOnDemand(t *testing.T) {
	tr, _ := newTransport(t, transport.ProfileSCO, codec.CVSD)
	spkR, spkW := pipe(t)
	defer unix.Close(spkW)
	tr.Speaker = pcm.NewEndpointFD(spkR)

	peer := -1
	t.Cleanup(func() {
		if peer != -1 {
			unix.Close(peer)
		}
	})
	tr.AcquireLink = func(tr *transport.Transport) error {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
		if err != nil {
			return err
		}
		peer = fds[1]
		tr.SetLink(fds[0], 0, 32)
		return nil
	}

	th := start(context.Background(), tr, testConfig(), quietLog(), instantTime{})
	require.Eventually(t, func() bool { return tr.BTFD() != -1 }, time.Second, 5*time.Millisecond)

	out := bytes.Repeat([]byte{0x44}, 32)
	writeAll(t, spkW, out)
	assert.Equal(t, out, readPacket(t, peer))

	th.Cancel()
	assert.ErrorIs(t, waitThread(t, th), context.Canceled)
}

// onDemandLink hands out a fresh socket pair whenever the loop acquires
// the link, and returns the remote end of the latest one.
func onDemandLink(t *testing.T, tr *transport.Transport, writeMTU int) *atomic.Int32 {
	t.Helper()
	peer := &atomic.Int32{}
	peer.Store(-1)
	t.Cleanup(func() {
		if fd := peer.Load(); fd != -1 {
			unix.Close(int(fd))
		}
	})
	tr.AcquireLink = func(tr *transport.Transport) error {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
		if err != nil {
			return err
		}
		if old := peer.Swap(int32(fds[1])); old != -1 {
			unix.Close(int(old))
		}
		tr.SetLink(fds[0], 0, writeMTU)
		return nil
	}
	return peer
}

func TestSCOSpeakerFIFOWithoutWriter(t *testing.T) {
	tr, released := newTransport(t, transport.ProfileSCO, codec.CVSD)
	tr.Speaker = pcm.NewEndpoint(fifo(t, "spk"))
	a, b := socketPair(t)
	defer unix.Close(b)
	tr.SetLink(a, 0, 32)

	th := start(context.Background(), tr, testConfig(), quietLog(), instantTime{})

	// an open FIFO without a writer is no client: the link is given up
	require.Eventually(t, func() bool { return tr.BTFD() == -1 }, time.Second, 5*time.Millisecond)

	th.Cancel()
	assert.ErrorIs(t, waitThread(t, th), context.Canceled)
	assert.Equal(t, int32(1), released.Load())
}

func TestSCOSpeakerClientConnects(t *testing.T) {
	tr, _ := newTransport(t, transport.ProfileSCO, codec.CVSD)
	path := fifo(t, "spk")
	tr.Speaker = pcm.NewEndpoint(path)
	peer := onDemandLink(t, tr, 32)

	th := start(context.Background(), tr, testConfig(), quietLog(), instantTime{})
	require.Eventually(t, func() bool { return !tr.Speaker.Closed() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, -1, tr.BTFD())

	spk := openFIFO(t, path, unix.O_WRONLY)
	defer unix.Close(spk)
	out := bytes.Repeat([]byte{0x66}, 32)
	writeAll(t, spk, out)

	require.Eventually(t, func() bool { return peer.Load() != -1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, out, readPacket(t, int(peer.Load())))

	th.Cancel()
	assert.ErrorIs(t, waitThread(t, th), context.Canceled)
}

// firstChunk clocks the link with noise until a chunk comes back.
func firstChunk(t *testing.T, peer int) []byte {
	t.Helper()
	for i := 0; i < 50; i++ {
		writeAll(t, peer, []byte{0x55, 0x55, 0x55})
		if pollIn(t, peer, 20*time.Millisecond) {
			return readPacket(t, peer)
		}
	}
	t.Fatal("no chunk sent on the link")
	return nil
}

func TestSCOMSBCFreshStateOnNewLink(t *testing.T) {
	tr, _ := newTransport(t, transport.ProfileSCO, codec.MSBC)
	path := fifo(t, "spk")
	tr.Speaker = pcm.NewEndpoint(path)
	peer := onDemandLink(t, tr, 24)

	th := start(context.Background(), tr, testConfig(), quietLog(), instantTime{})
	require.Eventually(t, func() bool { return !tr.Speaker.Closed() }, time.Second, 5*time.Millisecond)

	spk := openFIFO(t, path, unix.O_WRONLY)
	defer unix.Close(spk)
	writeAll(t, spk, tone(2*sco.PCMUnit))
	require.Eventually(t, func() bool { return peer.Load() != -1 }, time.Second, 5*time.Millisecond)

	first := peer.Load()
	chunk := firstChunk(t, int(first))
	require.Len(t, chunk, 24)
	assert.Equal(t, []byte{sco.H2Sync, sco.Sequence(0), sbc.MSBCSyncWord}, chunk[:3])

	// the client is dropped: the link goes while the FIFO waits for data
	tr.Speaker.Release()
	require.NoError(t, tr.Wakeup.Signal())
	require.Eventually(t, func() bool { return tr.BTFD() == -1 }, time.Second, 5*time.Millisecond)

	// frames queued for the old link are not carried over
	writeAll(t, spk, tone(2*sco.PCMUnit))
	require.Eventually(t, func() bool {
		fd := peer.Load()
		return fd != -1 && fd != first
	}, time.Second, 5*time.Millisecond)
	chunk = firstChunk(t, int(peer.Load()))
	require.Len(t, chunk, 24)
	assert.Equal(t, []byte{sco.H2Sync, sco.Sequence(0), sbc.MSBCSyncWord}, chunk[:3])

	th.Cancel()
	assert.ErrorIs(t, waitThread(t, th), context.Canceled)
}

// msbcStream encodes PCM units into H2 frames the way a headset would.
func msbcStream(t *testing.T, frames int) [][]byte {
	t.Helper()
	enc, err := sbc.NewEncoder(sbc.MSBCConfig())
	require.NoError(t, err)
	defer enc.Close()

	h2 := sco.NewH2Encoder(enc, 0)
	var out [][]byte
	for i := 0; i < frames; i++ {
		_, err := h2.PCM().Write(tone(sco.PCMUnit))
		require.NoError(t, err)
		n, err := h2.Encode()
		require.NoError(t, err)
		require.Equal(t, 1, n)
		frame := make([]byte, sco.FrameLen)
		copy(frame, h2.Out().Bytes())
		h2.Out().Consume(sco.FrameLen)
		out = append(out, frame)
	}
	return out
}

func TestSCOMSBC(t *testing.T) {
	f := newSCO(t, codec.MSBC)
	th := start(context.Background(), f.tr, testConfig(), quietLog(), instantTime{})

	// two speaker frames queued before the link starts clocking
	writeAll(t, f.spkW, tone(2*sco.PCMUnit))

	writeAll(t, f.peer, []byte{0x55, 0x55, 0x55, 0x55, 0x55})
	frames := msbcStream(t, 6)
	for _, frame := range frames {
		writeAll(t, f.peer, frame)
		assert.Len(t, readFull(t, f.micR, sco.PCMUnit), sco.PCMUnit)
	}

	// one chunk of the default SCO MTU goes out per received packet
	chunk := readPacket(t, f.peer)
	require.Len(t, chunk, testConfig().SCOMTU)
	assert.Equal(t, byte(sco.H2Sync), chunk[0])
	assert.Equal(t, sco.Sequence(0), chunk[1])
	assert.Equal(t, byte(sbc.MSBCSyncWord), chunk[2])

	th.Cancel()
	assert.ErrorIs(t, waitThread(t, th), context.Canceled)
}

func TestSCOCodecSwitch(t *testing.T) {
	f := newSCO(t, codec.CVSD)
	th := start(context.Background(), f.tr, testConfig(), quietLog(), instantTime{})

	writeAll(t, f.peer, make([]byte, 48))
	readFull(t, f.micR, 48)

	f.tr.SetCodec(codec.MSBC)
	f.tr.Wakeup.Signal()

	// raw CVSD sized packets no longer reach the microphone, H2 frames do
	for _, frame := range msbcStream(t, 2) {
		writeAll(t, f.peer, frame)
	}
	assert.Len(t, readFull(t, f.micR, 2*sco.PCMUnit), 2*sco.PCMUnit)

	th.Cancel()
	assert.ErrorIs(t, waitThread(t, th), context.Canceled)
}
