package game

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/stretchr/testify/mock"
)

// --- NetworkSession ---

type MockNetworkSession struct {
	mock.Mock
}

func (m *MockNetworkSession) Close(errCode string) {
	m.Called(errCode)
}

func (m *MockNetworkSession) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockNetworkSession) Read() ([]byte, bool, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *MockNetworkSession) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// --- UniqueIdGenerator ---

type MockUniqueIdGenerator struct {
	mock.Mock
}

func (m *MockUniqueIdGenerator) Generate() string {
	args := m.Called()
	return args.String(0)
}

// seqIds hands out msg-1, msg-2, ... for tests that do not care about ids.
type seqIds struct {
	mu sync.Mutex
	n  int
}

func (s *seqIds) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("msg-%d", s.n)
}

// --- PeriodicTickerChannelCreator ---

type MockPeriodicTickerChannelCreator struct {
	mock.Mock
}

func (m *MockPeriodicTickerChannelCreator) Create(duration time.Duration) (<-chan time.Time, func()) {
	args := m.Called(duration)
	return args.Get(0).(chan time.Time), func() {}
}

// --- EventPublisher ---

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, e domain.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// --- PasscodeHasher ---

type MockPasscodeHasher struct {
	mock.Mock
}

func (m *MockPasscodeHasher) Hash(passcode string) (string, error) {
	args := m.Called(passcode)
	return args.String(0), args.Error(1)
}

func (m *MockPasscodeHasher) Compare(hash, passcode string) (bool, error) {
	args := m.Called(hash, passcode)
	return args.Bool(0), args.Error(1)
}

// --- RoomJoiner ---

type MockRoomJoiner struct {
	mock.Mock
}

func (m *MockRoomJoiner) Join(ctx context.Context, roomID string, s *Session) error {
	args := m.Called(ctx, roomID, s)
	return args.Error(0)
}

// fixedRand returns the queued values in order and 0 once they run out.
type fixedRand struct {
	values []int
}

func (f *fixedRand) Intn(n int) int {
	if len(f.values) == 0 {
		return 0
	}
	v := f.values[0]
	f.values = f.values[1:]
	return v % n
}

// --- fakeSocket ---

type fakeFrame struct {
	data   []byte
	binary bool
}

// fakeSocket is a NetworkSession driven by channels, for tests that run the real pumps.
type fakeSocket struct {
	reads     chan fakeFrame
	writes    chan []byte
	closed    chan struct{}
	closeCode chan string
	closeOnce sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		reads:     make(chan fakeFrame, 16),
		writes:    make(chan []byte, 1024),
		closed:    make(chan struct{}),
		closeCode: make(chan string, 1),
	}
}

func (f *fakeSocket) Read() ([]byte, bool, error) {
	select {
	case fr := <-f.reads:
		return fr.data, fr.binary, nil
	case <-f.closed:
		return nil, false, io.EOF
	}
}

func (f *fakeSocket) Write(data []byte) error {
	select {
	case <-f.closed:
		return io.ErrClosedPipe
	case f.writes <- data:
		return nil
	}
}

func (f *fakeSocket) Ping() error {
	return nil
}

func (f *fakeSocket) Close(errCode string) {
	f.closeOnce.Do(func() {
		f.closeCode <- errCode
		close(f.closed)
	})
}

func (f *fakeSocket) sendText(s string) {
	f.reads <- fakeFrame{data: []byte(s)}
}

// waitFrame reads written frames until one satisfies match.
func (f *fakeSocket) waitFrame(t *testing.T, match func(ServerFrame) bool) ServerFrame {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case data := <-f.writes:
			var frame ServerFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				t.Fatalf("bad frame %q: %v", data, err)
			}
			if match(frame) {
				return frame
			}
		case <-timeout:
			t.Fatal("timed out waiting for frame")
			return ServerFrame{}
		}
	}
}

func (f *fakeSocket) waitClosed(t *testing.T) string {
	t.Helper()
	select {
	case code := <-f.closeCode:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
		return ""
	}
}
