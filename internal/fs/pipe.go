package fs

import (
	"sync"

	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
)

const pipeSize = 4096

// pipe is an in-memory byte channel between a read and a write descriptor.
// A bounded ring buffer plus two condition variables give the blocking
// semantics: readers wait for data, writers wait for room.
type pipe struct {
	mu        sync.Mutex
	data      [pipeSize]byte
	nread     uint32
	nwrite    uint32
	readOpen  bool
	writeOpen bool
	rwait     sync.Cond
	wwait     sync.Cond
}

// allocPipe builds the channel and both of its endpoint files.
func allocPipe() (*File, *File) {
	p := &pipe{readOpen: true, writeOpen: true}
	p.rwait.L = &p.mu
	p.wwait.L = &p.mu
	rf := newFile(FDPipeRead, nil, p, true, false)
	wf := newFile(FDPipeWrite, nil, p, false, true)
	return rf, wf
}

// closeEnd retires one side. Waiters on the other side are woken so a
// blocked read observes EOF and a blocked write observes the broken pipe.
func (p *pipe) closeEnd(writable bool) {
	p.mu.Lock()
	if writable {
		p.writeOpen = false
		p.rwait.Broadcast()
	} else {
		p.readOpen = false
		p.wwait.Broadcast()
	}
	p.mu.Unlock()
}

func (p *pipe) read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.nread == p.nwrite && p.writeOpen {
		p.rwait.Wait()
	}
	n := 0
	for n < len(buf) && p.nread != p.nwrite {
		buf[n] = p.data[p.nread%pipeSize]
		p.nread++
		n++
	}
	p.wwait.Broadcast()
	return n, nil
}

func (p *pipe) write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for n < len(data) {
		if !p.readOpen {
			return n, kerrors.ErrBrokenPipe
		}
		if p.nwrite == p.nread+pipeSize {
			p.rwait.Broadcast()
			p.wwait.Wait()
			continue
		}
		p.data[p.nwrite%pipeSize] = data[n]
		p.nwrite++
		n++
	}
	p.rwait.Broadcast()
	return n, nil
}
