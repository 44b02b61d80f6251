package rft

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/drunlade/go-rft/netsim"
)

var peerAddr = netsim.Addr("sender")

type ReceiverTestSuite struct {
	rftTestSuite
	conn     *recordingConn
	sink     *memSink
	creates  []string
	receiver *Receiver
}

func (suite *ReceiverTestSuite) SetupTest() {
	suite.conn = &recordingConn{}
	suite.sink = &memSink{}
	suite.creates = nil
	suite.receiver = suite.newReceiver(nil)
}

func (suite *ReceiverTestSuite) newReceiver(mutate func(*ReceiverConfig)) *Receiver {
	cfg := DefaultReceiverConfig()
	cfg.FrameSize = MinFrameSize
	cfg.Dir = suite.T().TempDir()
	cfg.Callbacks = &Callbacks{
		OnFileCreate: func(name string) (io.WriteCloser, error) {
			suite.creates = append(suite.creates, name)
			return suite.sink, nil
		},
	}
	if mutate != nil {
		mutate(cfg)
	}
	return NewReceiver(suite.conn, cfg)
}

func (suite *ReceiverTestSuite) deliver(seq uint32, kind Kind, payload []byte) error {
	return suite.receiver.handleDatagram(suite.frame(MinFrameSize, seq, kind, payload), peerAddr)
}

func (suite *ReceiverTestSuite) lastReply() Reply {
	suite.Require().NotEmpty(suite.conn.replies)
	return suite.decodeReply(suite.conn.replies[len(suite.conn.replies)-1])
}

func (suite *ReceiverTestSuite) TestNameUnitOpensSink() {
	suite.handleTestError(suite.deliver(0, KindName, []byte("  out.txt \n")))

	suite.Equal([]string{"out.txt"}, suite.creates)
	suite.Equal(Reply{Sequence: 0, Status: StatusAck}, suite.lastReply())
	suite.Equal(uint32(1), suite.receiver.Expected())
	suite.Equal(peerAddr, suite.conn.addrs[0])
}

func (suite *ReceiverTestSuite) TestInOrderDataIsWritten() {
	suite.handleTestError(suite.deliver(0, KindName, []byte("out.txt")))
	suite.handleTestError(suite.deliver(1, KindData, []byte("hel")))
	suite.handleTestError(suite.deliver(2, KindData, []byte("lo")))

	suite.Equal("hello", string(suite.sink.Bytes()))
	suite.Equal(Reply{Sequence: 2, Status: StatusAck}, suite.lastReply())
	suite.Equal(uint32(3), suite.receiver.Expected())
	suite.Equal(int64(5), suite.receiver.Stats().Get(CounterBytesWritten))
}

func (suite *ReceiverTestSuite) TestShortDatagramDroppedSilently() {
	suite.handleTestError(suite.receiver.handleDatagram(make([]byte, HeaderSize-1), peerAddr))

	suite.Empty(suite.conn.replies)
	suite.Equal(int64(1), suite.receiver.Stats().Get(CounterMalformedDropped))
	suite.Equal(uint32(0), suite.receiver.Expected())
}

func (suite *ReceiverTestSuite) TestCorruptFrameNaksExpected() {
	suite.handleTestError(suite.deliver(0, KindName, []byte("out.txt")))
	buf := suite.frame(MinFrameSize, 1, KindData, []byte("abc"))
	buf[30] ^= 0x04

	suite.handleTestError(suite.receiver.handleDatagram(buf, peerAddr))
	suite.Equal(Reply{Sequence: 1, Status: StatusNak}, suite.lastReply())
	suite.Equal(uint32(1), suite.receiver.Expected())
	suite.Empty(suite.sink.Bytes())
	suite.Equal(int64(1), suite.receiver.Stats().Get(CounterCorruptFrames))
}

func (suite *ReceiverTestSuite) TestFutureFrameNaksExpected() {
	suite.handleTestError(suite.deliver(0, KindName, []byte("out.txt")))
	suite.handleTestError(suite.deliver(5, KindData, []byte("zzz")))

	suite.Equal(Reply{Sequence: 1, Status: StatusNak}, suite.lastReply())
	suite.Equal(uint32(1), suite.receiver.Expected())
	suite.Empty(suite.sink.Bytes())
}

func (suite *ReceiverTestSuite) TestDataBeforeNameIsNaked() {
	suite.handleTestError(suite.deliver(1, KindData, []byte("early")))

	suite.Equal(Reply{Sequence: 0, Status: StatusNak}, suite.lastReply())
	suite.Empty(suite.creates)
}

func (suite *ReceiverTestSuite) TestDuplicateIsReackedWithoutWrite() {
	suite.handleTestError(suite.deliver(0, KindName, []byte("out.txt")))
	suite.handleTestError(suite.deliver(1, KindData, []byte("abc")))
	suite.handleTestError(suite.deliver(1, KindData, []byte("abc")))

	suite.Equal(Reply{Sequence: 1, Status: StatusAck}, suite.lastReply())
	suite.Equal("abc", string(suite.sink.Bytes()))
	suite.Equal(1, suite.sink.writes)
	suite.Equal(uint32(2), suite.receiver.Expected())
	suite.Equal(int64(1), suite.receiver.Stats().Get(CounterDuplicates))
}

func (suite *ReceiverTestSuite) TestDuplicateNameOpensOnce() {
	suite.handleTestError(suite.deliver(0, KindName, []byte("out.txt")))
	suite.handleTestError(suite.deliver(0, KindName, []byte("out.txt")))

	suite.Len(suite.creates, 1)
	suite.Equal(Reply{Sequence: 0, Status: StatusAck}, suite.lastReply())
	suite.Len(suite.conn.replies, 2)
}

func (suite *ReceiverTestSuite) TestOlderFrameIsNaked() {
	suite.handleTestError(suite.deliver(0, KindName, []byte("out.txt")))
	suite.handleTestError(suite.deliver(1, KindData, []byte("a")))
	suite.handleTestError(suite.deliver(2, KindData, []byte("b")))
	suite.handleTestError(suite.deliver(0, KindName, []byte("out.txt")))

	suite.Equal(Reply{Sequence: 3, Status: StatusNak}, suite.lastReply())
	suite.Equal(int64(1), suite.receiver.Stats().Get(CounterOutOfOrder))
}

func (suite *ReceiverTestSuite) TestWriteFailureIsFatal() {
	failing := &failingSink{}
	suite.receiver = suite.newReceiver(func(cfg *ReceiverConfig) {
		cfg.Callbacks.OnFileCreate = func(string) (io.WriteCloser, error) { return failing, nil }
	})
	suite.handleTestError(suite.deliver(0, KindName, []byte("out.txt")))

	err := suite.deliver(1, KindData, []byte("abc"))
	var e *Error
	suite.Require().ErrorAs(err, &e)
	suite.Equal(ErrIO, e.Type)
	suite.Equal(int64(1), e.Sequence)
	suite.ErrorIs(err, errDiskFull)
	suite.Len(suite.conn.replies, 1, "no reply for the failed unit")
	suite.Equal(uint32(1), suite.receiver.Expected())
}

func (suite *ReceiverTestSuite) TestDefaultSinkUsesBaseName() {
	dir := suite.T().TempDir()
	suite.receiver = suite.newReceiver(func(cfg *ReceiverConfig) {
		cfg.Dir = dir
		cfg.Callbacks = nil
	})
	suite.handleTestError(suite.deliver(0, KindName, []byte("../../etc/out.txt")))
	suite.handleTestError(suite.deliver(1, KindData, []byte("hello")))
	suite.handleTestError(suite.receiver.finish())

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	suite.handleTestError(err)
	suite.Equal("hello", string(data))
}

func (suite *ReceiverTestSuite) TestInvalidNameIsFatal() {
	suite.receiver = suite.newReceiver(func(cfg *ReceiverConfig) { cfg.Callbacks = nil })

	err := suite.deliver(0, KindName, []byte(" .. "))
	var e *Error
	suite.Require().ErrorAs(err, &e)
	suite.Equal(ErrProtocol, e.Type)
	suite.Empty(suite.conn.replies)
}

func (suite *ReceiverTestSuite) trailerFor(data []byte) []byte {
	d := newDigest()
	d.Write(data)
	payload, err := EncodeTrailer(Trailer{Size: int64(len(data)), Digest: d.Sum(nil)})
	suite.handleTestError(err)
	return payload
}

func (suite *ReceiverTestSuite) TestTrailerCompletesTransfer() {
	suite.receiver = suite.newReceiver(func(cfg *ReceiverConfig) { cfg.Trailer = true })
	suite.handleTestError(suite.deliver(0, KindName, []byte("out.txt")))
	suite.handleTestError(suite.deliver(1, KindData, []byte("hello")))
	suite.handleTestError(suite.deliver(2, KindEnd, suite.trailerFor([]byte("hello"))))

	suite.Equal(Reply{Sequence: 2, Status: StatusAck}, suite.lastReply())
	suite.True(suite.sink.closed)

	// the final Ack may be lost; the End unit is re-acked
	suite.handleTestError(suite.deliver(2, KindEnd, suite.trailerFor([]byte("hello"))))
	suite.Equal(Reply{Sequence: 2, Status: StatusAck}, suite.lastReply())

	// nothing is delivered after the End unit
	suite.handleTestError(suite.deliver(3, KindData, []byte("late")))
	suite.Equal(Reply{Sequence: 3, Status: StatusNak}, suite.lastReply())
	suite.Equal("hello", string(suite.sink.Bytes()))
}

func (suite *ReceiverTestSuite) TestTrailerMismatchIsFatal() {
	suite.receiver = suite.newReceiver(func(cfg *ReceiverConfig) { cfg.Trailer = true })
	suite.handleTestError(suite.deliver(0, KindName, []byte("out.txt")))
	suite.handleTestError(suite.deliver(1, KindData, []byte("hellO")))

	err := suite.deliver(2, KindEnd, suite.trailerFor([]byte("hello")))
	suite.True(IsIntegrity(err))
	suite.Equal(Reply{Sequence: 1, Status: StatusAck}, suite.lastReply())
}

func (suite *ReceiverTestSuite) TestEndIgnoredWithoutTrailer() {
	suite.handleTestError(suite.deliver(0, KindName, []byte("out.txt")))
	suite.handleTestError(suite.deliver(1, KindEnd, suite.trailerFor(nil)))

	suite.Equal(Reply{Sequence: 1, Status: StatusAck}, suite.lastReply())
	suite.Empty(suite.sink.Bytes())
	suite.False(suite.sink.closed)
}

func TestReceiver(t *testing.T) {
	suite.Run(t, new(ReceiverTestSuite))
}

// ReceiveLoopTestSuite drives Receive over an in-memory pipe.
type ReceiveLoopTestSuite struct {
	rftTestSuite
	local  *netsim.Endpoint
	remote *netsim.Endpoint
}

func (suite *ReceiveLoopTestSuite) SetupTest() {
	suite.local, suite.remote = netsim.Pipe("receiver", "sender")
}

func (suite *ReceiveLoopTestSuite) TearDownTest() {
	suite.handleTestError(suite.local.Close())
	suite.handleTestError(suite.remote.Close())
}

func (suite *ReceiveLoopTestSuite) newReceiver(mutate func(*ReceiverConfig)) *Receiver {
	cfg := DefaultReceiverConfig()
	cfg.FrameSize = MinFrameSize
	cfg.Dir = suite.T().TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	return NewReceiver(suite.local, cfg)
}

func (suite *ReceiveLoopTestSuite) TestCancelBeforeTransfer() {
	receiver := suite.newReceiver(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := receiver.Receive(ctx)
	suite.True(IsCancelled(err))
	suite.Equal(uint32(0), res.Units)
}

func (suite *ReceiveLoopTestSuite) TestIdleTimeoutEndsStartedTransfer() {
	receiver := suite.newReceiver(func(cfg *ReceiverConfig) { cfg.IdleTimeout = 50 * time.Millisecond })
	_, err := suite.remote.WriteTo(suite.frame(MinFrameSize, 0, KindName, []byte("idle.txt")), suite.local.LocalAddr())
	suite.handleTestError(err)
	_, err = suite.remote.WriteTo(suite.frame(MinFrameSize, 1, KindData, []byte("abc")), suite.local.LocalAddr())
	suite.handleTestError(err)

	res, err := receiver.Receive(context.Background())
	suite.handleTestError(err)
	suite.Equal("idle.txt", res.Name)
	suite.Equal(int64(3), res.Bytes)
	suite.Equal(uint32(2), res.Units)
}

func (suite *ReceiveLoopTestSuite) TestIdleTimeoutWaitsForFirstFrame() {
	receiver := suite.newReceiver(func(cfg *ReceiverConfig) { cfg.IdleTimeout = 10 * time.Millisecond })
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	_, err := receiver.Receive(ctx)
	suite.True(IsCancelled(err), "idle timeout must not fire before the name unit")
}

func (suite *ReceiveLoopTestSuite) TestRepliesGoToSource() {
	receiver := suite.newReceiver(func(cfg *ReceiverConfig) { cfg.IdleTimeout = 30 * time.Millisecond })
	_, err := suite.remote.WriteTo(suite.frame(MinFrameSize, 0, KindName, []byte("x")), suite.local.LocalAddr())
	suite.handleTestError(err)

	_, err = receiver.Receive(context.Background())
	suite.handleTestError(err)

	buf := make([]byte, 64)
	suite.handleTestError(suite.remote.SetReadDeadline(time.Now().Add(time.Second)))
	n, _, err := suite.remote.ReadFrom(buf)
	suite.handleTestError(err)
	suite.Equal(Reply{Sequence: 0, Status: StatusAck}, suite.decodeReply(buf[:n]))
}

func TestReceiveLoop(t *testing.T) {
	suite.Run(t, new(ReceiveLoopTestSuite))
}
