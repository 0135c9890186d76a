package runner

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"
)

type lineResult struct {
	text string
	err  error
}

// linePump reads lines on a background goroutine so a blocked read never
// outlives the context of the caller waiting for it.
type linePump struct {
	reader *bufio.Reader
	lines  chan lineResult
	once   sync.Once
}

func newLinePump(r io.Reader) *linePump {
	return &linePump{reader: bufio.NewReader(r)}
}

func (p *linePump) start() {
	p.once.Do(func() {
		p.lines = make(chan lineResult)
		go p.run()
	})
}

func (p *linePump) run() {
	for {
		text, err := p.reader.ReadString('\n')
		if text != "" {
			p.lines <- lineResult{text: text}
		}
		if err == nil {
			continue
		}
		if err == io.EOF {
			close(p.lines)
			return
		}
		p.lines <- lineResult{err: err}
		// Persistent read failures must not spin the CPU.
		time.Sleep(50 * time.Millisecond)
	}
}

// next returns the following line, io.EOF once the source is drained, or ctx.Err().
func (p *linePump) next(ctx context.Context) (string, error) {
	p.start()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return res.text, res.err
	}
}
