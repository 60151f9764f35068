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

// Package serialmem reaches a remote shared-memory arena through a small
// read/write-memory monitor on the other end of a serial line (a UART
// gateway stub on the target, or a probe bridge). Frames are SLIP-delimited:
//
//	request:  op u8 | addr u32le | count u32le | payload (writes only)
//	response: op|0x80 | status u8 | payload (reads only)
//
// count is in 32-bit words. A nonzero status is the remote's errno.
package serialmem

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/cesanta/go-serial/serial"
	"github.com/juju/errors"

	"github.com/mongoose-os/memprog/host"
)

const (
	opRead  = 0x01
	opWrite = 0x02
	opResp  = 0x80

	// maxWords bounds a single transaction; larger accesses are split.
	maxWords = 256

	maxFrame = 16 + 4*maxWords
)

// Conn is a host.MemReaderWriter over the gateway.
type Conn struct {
	sc     *slipCodec
	closer io.Closer
}

// Open connects to the gateway on a serial port.
func Open(port string, baudRate uint) (*Conn, error) {
	s, err := serial.Open(serial.OpenOptions{
		PortName:              port,
		BaudRate:              baudRate,
		DataBits:              8,
		ParityMode:            serial.PARITY_NONE,
		StopBits:              1,
		InterCharacterTimeout: 200,
		MinimumReadSize:       1,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open %s", port)
	}
	c := New(s)
	c.closer = s
	return c, nil
}

// New wraps an existing byte pipe (tests use an in-memory one).
func New(rw io.ReadWriter) *Conn {
	return &Conn{sc: newSLIPCodec(rw)}
}

func (c *Conn) Close() error {
	if c.closer == nil {
		return nil
	}
	return errors.Trace(c.closer.Close())
}

func (c *Conn) transact(ctx context.Context, op uint8, addr uint32, count int, payload []uint32) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	req := make([]byte, 9+4*len(payload))
	req[0] = op
	binary.LittleEndian.PutUint32(req[1:], addr)
	binary.LittleEndian.PutUint32(req[5:], uint32(count))
	for i, w := range payload {
		binary.LittleEndian.PutUint32(req[9+4*i:], w)
	}
	if err := c.sc.sendFrame(req); err != nil {
		return nil, errors.Trace(err)
	}
	resp, err := c.sc.recvFrame(maxFrame)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(resp) < 2 || resp[0] != op|opResp {
		return nil, errors.Errorf("bad response to op 0x%02x: % x", op, resp)
	}
	if resp[1] != 0 {
		return nil, errors.Errorf("remote error %d for op 0x%02x @ 0x%08x", resp[1], op, addr)
	}
	body := resp[2:]
	if op == opRead {
		if len(body) != 4*count {
			return nil, errors.Errorf("short read: got %d bytes, want %d", len(body), 4*count)
		}
		words := make([]uint32, count)
		for i := range words {
			words[i] = binary.LittleEndian.Uint32(body[4*i:])
		}
		return words, nil
	}
	return nil, nil
}

func (c *Conn) ReadTargetReg(ctx context.Context, addr uint32) (uint32, error) {
	words, err := c.ReadTargetMem(ctx, addr, 1)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return words[0], nil
}

func (c *Conn) ReadTargetMem(ctx context.Context, addr uint32, length int) ([]uint32, error) {
	var res []uint32
	for length > 0 {
		n := length
		if n > maxWords {
			n = maxWords
		}
		words, err := c.transact(ctx, opRead, addr, n, nil)
		if err != nil {
			return nil, errors.Trace(err)
		}
		res = append(res, words...)
		addr += uint32(n * 4)
		length -= n
	}
	return res, nil
}

func (c *Conn) WriteTargetReg(ctx context.Context, addr uint32, value uint32) error {
	return errors.Trace(c.WriteTargetMem(ctx, addr, []uint32{value}))
}

func (c *Conn) WriteTargetMem(ctx context.Context, addr uint32, data []uint32) error {
	for len(data) > 0 {
		n := len(data)
		if n > maxWords {
			n = maxWords
		}
		if _, err := c.transact(ctx, opWrite, addr, n, data[:n]); err != nil {
			return errors.Trace(err)
		}
		addr += uint32(n * 4)
		data = data[n:]
	}
	return nil
}

var _ host.MemReaderWriter = (*Conn)(nil)
