package executor

import (
	"io"
	"sync"
)

// Input shares one reader, usually the terminal, between consumers that
// take turns: the Damp prompter and remote sessions forwarding stdin. At
// most one read of the source is in flight. If its consumer has gone away
// when it completes, the data is kept for the next consumer.
type Input struct {
	src  io.Reader
	turn chan struct{}

	// Owned by the reader holding turn.
	pending []byte
	result  chan inputChunk
	err     error
}

type inputChunk struct {
	data []byte
	err  error
}

func NewInput(src io.Reader) *Input {
	return &Input{src: src, turn: make(chan struct{}, 1)}
}

func (in *Input) Read(p []byte) (int, error) {
	return in.read(p, nil)
}

// Session returns a reader over in that reports io.EOF once closed. Closing
// it releases a consumer blocked in Read without losing input.
func (in *Input) Session() *InputSession {
	return &InputSession{in: in, done: make(chan struct{})}
}

func (in *Input) read(p []byte, done <-chan struct{}) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	select {
	case in.turn <- struct{}{}:
	case <-done:
		return 0, io.EOF
	}
	defer func() { <-in.turn }()

	if isClosed(done) {
		return 0, io.EOF
	}
	if n := in.drain(p); n > 0 {
		return n, nil
	}
	if in.err != nil {
		return 0, in.err
	}
	if in.result == nil {
		ch := make(chan inputChunk, 1)
		in.result = ch
		go func() {
			buf := make([]byte, 1024)
			n, err := in.src.Read(buf)
			ch <- inputChunk{data: buf[:n], err: err}
		}()
	}

	select {
	case c := <-in.result:
		in.result = nil
		in.pending = append(in.pending, c.data...)
		in.err = c.err
		if isClosed(done) {
			return 0, io.EOF
		}
		if n := in.drain(p); n > 0 {
			return n, nil
		}
		return 0, in.err
	case <-done:
		return 0, io.EOF
	}
}

func (in *Input) drain(p []byte) int {
	n := copy(p, in.pending)
	in.pending = in.pending[n:]
	return n
}

func isClosed(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// InputSession is one consumer's view of an Input.
type InputSession struct {
	in   *Input
	done chan struct{}
	once sync.Once
}

func (s *InputSession) Read(p []byte) (int, error) {
	return s.in.read(p, s.done)
}

func (s *InputSession) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
