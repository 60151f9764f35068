//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package host

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/memprog/common/memprog"
)

// Host side of the buffer pool. Each descriptor's first word carries
// (Token, Status, Interface, Sequence) and is the per-descriptor
// publication point: the host writes payload and the address/length words
// first and that word last, and reads it before touching anything else.

func (d *Driver) bdtEntryAddr(i int) uint32 {
	return d.caps.BDTBase + uint32(i*memprog.BDTEntrySize)
}

func (d *Driver) bufferAddr(i int) uint32 {
	return d.caps.BufferBase + uint32(i*d.caps.BufferSize)
}

func bdtWord0(t memprog.Token, s memprog.BufStatus, iface, seq uint8) uint32 {
	return uint32(t) | uint32(s)<<8 | uint32(iface)<<16 | uint32(seq)<<24
}

func splitBDTWord0(w uint32) (t memprog.Token, s memprog.BufStatus, iface, seq uint8) {
	return memprog.Token(w), memprog.BufStatus(w >> 8), uint8(w >> 16), uint8(w >> 24)
}

// findFreeBuffer returns the index of the first host-owned FREE descriptor
// at or after `from`, or -1.
func (d *Driver) findFreeBuffer(ctx context.Context, from int) (int, error) {
	for i := from; i < d.caps.NumBuffers; i++ {
		w0, err := d.mio.ReadTargetReg(ctx, d.bdtEntryAddr(i))
		if err != nil {
			return -1, errors.Trace(err)
		}
		t, s, _, _ := splitBDTWord0(w0)
		if t == memprog.TokenHost && s == memprog.BufFree {
			return i, nil
		}
	}
	return -1, nil
}

func (d *Driver) waitFreeBuffer(ctx context.Context) (int, error) {
	idx := -1
	err := d.poll(ctx, d.CmdTimeout, "free buffer", func() (bool, error) {
		i, err := d.findFreeBuffer(ctx, 0)
		idx = i
		return i >= 0, err
	})
	return idx, errors.Trace(err)
}

// sendBuffer claims descriptor idx and publishes it to the target carrying
// data (may be nil for request-only descriptors), the address/length pair
// and the sequence byte.
func (d *Driver) sendBuffer(ctx context.Context, iface uint8, idx int, addr uint32, data []byte, length uint32, seq uint8) error {
	ea := d.bdtEntryAddr(idx)
	if err := d.mio.WriteTargetReg(ctx, ea,
		bdtWord0(memprog.TokenHost, memprog.BufPending, iface, 0)); err != nil {
		return errors.Trace(err)
	}
	if len(data) > 0 {
		if err := d.mio.WriteTargetMem(ctx, d.bufferAddr(idx), bytesToWords(data, 0xff)); err != nil {
			return errors.Trace(err)
		}
	}
	if err := d.mio.WriteTargetMem(ctx, ea+memprog.BDTOffAddress,
		[]uint32{addr, length}); err != nil {
		return errors.Trace(err)
	}
	glog.V(3).Infof("if %d: sent buffer %d seq 0x%02x addr 0x%08x len %d",
		iface, idx, seq, addr, length)
	return errors.Trace(d.mio.WriteTargetReg(ctx, ea,
		bdtWord0(memprog.TokenTarget, memprog.BufFull, iface, seq)))
}

// takeFullBuffer scans for a host-owned FULL descriptor of this interface
// carrying the wanted sequence number; with none in sequence, a terminal
// descriptor is accepted out of order.
func (d *Driver) takeFullBuffer(ctx context.Context, iface uint8, wantSeq uint8) (int, memprog.BDT, bool, error) {
	idx, seq := -1, uint8(0)
	for i := 0; i < d.caps.NumBuffers; i++ {
		w0, err := d.mio.ReadTargetReg(ctx, d.bdtEntryAddr(i))
		if err != nil {
			return -1, memprog.BDT{}, false, errors.Trace(err)
		}
		t, s, ifc, sq := splitBDTWord0(w0)
		if t != memprog.TokenHost || s != memprog.BufFull || ifc != iface {
			continue
		}
		if memprog.SeqNum(sq) == wantSeq {
			idx, seq = i, sq
			break
		}
		if memprog.SeqIsLast(sq) && idx < 0 {
			idx, seq = i, sq
		}
	}
	if idx < 0 {
		return -1, memprog.BDT{}, false, nil
	}
	al, err := d.mio.ReadTargetMem(ctx, d.bdtEntryAddr(idx)+memprog.BDTOffAddress, 2)
	if err != nil {
		return -1, memprog.BDT{}, false, errors.Trace(err)
	}
	b := memprog.BDT{
		Token: memprog.TokenHost, Status: memprog.BufFull, Interface: iface,
		Sequence: seq, Address: al[0], Length: al[1],
	}
	glog.V(3).Infof("if %d: received buffer %d %s", iface, idx, b)
	return idx, b, true, nil
}

func (d *Driver) readBufferData(ctx context.Context, idx int, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	if length > uint32(d.caps.BufferSize) {
		return nil, errors.Errorf("buffer %d claims %d bytes, capacity %d",
			idx, length, d.caps.BufferSize)
	}
	words, err := d.mio.ReadTargetMem(ctx, d.bufferAddr(idx), int(length+3)/4)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return wordsToBytes(words, int(length)), nil
}

// releaseBufferToTarget returns a consumed descriptor to the target's half
// of the pool, free. Also used to donate idle descriptors so the target
// has something to answer READ requests with.
func (d *Driver) releaseBufferToTarget(ctx context.Context, idx int) error {
	return errors.Trace(d.mio.WriteTargetReg(ctx, d.bdtEntryAddr(idx),
		bdtWord0(memprog.TokenTarget, memprog.BufFree, 0, 0)))
}

// writeStream chunks data into buffers and publishes them to the target,
// sequence-numbered, terminal bit on the final one. Empty data still sends
// one zero-length terminal buffer so the consumer sees end-of-stream.
func (d *Driver) writeStream(ctx context.Context, iface uint8, addr uint32, data []byte) error {
	seq := uint8(0)
	off := 0
	for {
		n := len(data) - off
		if n > d.caps.BufferSize {
			n = d.caps.BufferSize
		}
		last := off+n == len(data)
		idx, err := d.waitFreeBuffer(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		s := seq
		if last {
			s |= memprog.SeqLast
		}
		if err := d.sendBuffer(ctx, iface, idx, addr+uint32(off), data[off:off+n], uint32(n), s); err != nil {
			return errors.Trace(err)
		}
		if last {
			return nil
		}
		off += n
		seq = memprog.NextSeq(seq)
	}
}

// ReadMem reads length bytes at addr through the READ command: request
// descriptors flow to the target, data descriptors flow back, and idle
// descriptors are donated so the target always has a buffer to answer
// with. Responses are assembled by address.
func (d *Driver) ReadMem(ctx context.Context, iface uint8, addr uint32, length int) ([]byte, error) {
	caps, err := d.ensureCaps(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := d.Start(ctx, iface, memprog.CmdRead, memprog.Param{}); err != nil {
		return nil, errors.Trace(err)
	}

	type chunk struct {
		addr   uint32
		length int
	}
	var reqs []chunk
	for off := 0; ; {
		n := length - off
		if n > caps.BufferSize {
			n = caps.BufferSize
		}
		reqs = append(reqs, chunk{addr: addr + uint32(off), length: n})
		off += n
		if off >= length {
			break
		}
	}

	out := make([]byte, length)
	nextReq := 0
	txSeq, rxSeq := uint8(0), uint8(0)
	done := false
	deadline := time.Now().Add(d.CmdTimeout)
	for !done {
		progress := false

		idx, b, ok, err := d.takeFullBuffer(ctx, iface, rxSeq)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if ok {
			data, err := d.readBufferData(ctx, idx, b.Length)
			if err != nil {
				return nil, errors.Trace(err)
			}
			if err := d.releaseBufferToTarget(ctx, idx); err != nil {
				return nil, errors.Trace(err)
			}
			off := int(b.Address) - int(addr)
			if off < 0 || off+len(data) > len(out) {
				return nil, errors.Errorf("response 0x%08x+%d outside requested range", b.Address, len(data))
			}
			copy(out[off:], data)
			if memprog.SeqIsLast(b.Sequence) {
				done = true
			} else {
				rxSeq = memprog.NextSeq(rxSeq)
			}
			progress = true
		}

		if !done && nextReq < len(reqs) {
			if i, err := d.findFreeBuffer(ctx, 0); err != nil {
				return nil, errors.Trace(err)
			} else if i >= 0 {
				r := reqs[nextReq]
				last := nextReq == len(reqs)-1
				s := txSeq
				if last {
					s |= memprog.SeqLast
				}
				if err := d.sendBuffer(ctx, iface, i, r.addr, nil, uint32(r.length), s); err != nil {
					return nil, errors.Trace(err)
				}
				if !last {
					txSeq = memprog.NextSeq(txSeq)
				}
				nextReq++
				progress = true
			}
		}

		if !done {
			// Donate a spare free descriptor for the response path, keeping
			// one back while requests still need sending.
			if i, err := d.findFreeBuffer(ctx, 0); err != nil {
				return nil, errors.Trace(err)
			} else if i >= 0 {
				donate := i
				if nextReq < len(reqs) {
					j, err := d.findFreeBuffer(ctx, i+1)
					if err != nil {
						return nil, errors.Trace(err)
					}
					donate = j
				}
				if donate >= 0 {
					if err := d.releaseBufferToTarget(ctx, donate); err != nil {
						return nil, errors.Trace(err)
					}
				}
			}
		}

		if progress {
			deadline = time.Now().Add(d.CmdTimeout)
		} else {
			if time.Now().After(deadline) {
				return nil, errors.Errorf("timed out reading memory")
			}
			if err := d.idle(ctx); err != nil {
				return nil, errors.Trace(err)
			}
		}
	}

	p, err := d.Result(ctx, iface)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := checkResult(p, memprog.CmdRead); err != nil {
		return nil, errors.Trace(err)
	}
	return out, nil
}
