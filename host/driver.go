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

// Package host drives a memprog target through its shared-memory contract,
// the way a debug-probe driver would: word-based reads and writes of the
// parameter block, the buffer descriptor table and the data buffers, with
// the token discipline observed on every hand-off. Only the parameter
// block's address is needed up front; everything else is discovered with
// QUERY_CAP.
package host

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/memprog/common/memprog"
)

const (
	// DefaultAckTimeout bounds the fast half of the handshake: token
	// bounce and command acknowledgement.
	DefaultAckTimeout = 1 * time.Second
	// DefaultCmdTimeout bounds command completion and buffer turnaround.
	DefaultCmdTimeout = 30 * time.Second
)

// Caps is what QUERY_CAP reports.
type Caps struct {
	Version    uint32
	BDTBase    uint32
	BufferBase uint32
	NumBuffers int
	BufferSize int
}

// Range names a span of target memory for CRC requests.
type Range struct {
	Addr   uint32
	Length uint32
}

// Driver is the host side of one target. It is not safe for concurrent use;
// a single host agent is the protocol's model anyway.
type Driver struct {
	mio       MemReaderWriter
	paramBase uint32
	caps      *Caps

	// Completions can be posted by the target in any interface order; ones
	// read out while waiting for something else are parked here.
	results map[uint8]memprog.Param

	AckTimeout time.Duration
	CmdTimeout time.Duration

	// Idle is called on every poll iteration. The default sleeps 1ms; the
	// in-process simulator installs a hook that runs the target dispatcher
	// instead, giving deterministic lockstep execution.
	Idle func(ctx context.Context) error
}

// New creates a driver over the given transport. paramBase is the address
// of the parameter block, known out-of-band (firmware symbol table).
func New(mio MemReaderWriter, paramBase uint32) *Driver {
	return &Driver{
		mio:        mio,
		paramBase:  paramBase,
		results:    make(map[uint8]memprog.Param),
		AckTimeout: DefaultAckTimeout,
		CmdTimeout: DefaultCmdTimeout,
	}
}

// Caps returns the discovered capabilities, nil before Query.
func (d *Driver) Caps() *Caps {
	return d.caps
}

func (d *Driver) idle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	if d.Idle != nil {
		return errors.Trace(d.Idle(ctx))
	}
	time.Sleep(1 * time.Millisecond)
	return nil
}

func (d *Driver) poll(ctx context.Context, timeout time.Duration, what string, f func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		done, err := f()
		if err != nil {
			return errors.Trace(err)
		}
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Errorf("timed out waiting for %s", what)
		}
		if err := d.idle(ctx); err != nil {
			return errors.Trace(err)
		}
	}
}

// readParam returns the parameter block iff the host currently holds its
// token. The token word is read first; payload only after ownership is
// observed.
func (d *Driver) readParam(ctx context.Context) (memprog.Param, bool, error) {
	w0, err := d.mio.ReadTargetReg(ctx, d.paramBase)
	if err != nil {
		return memprog.Param{}, false, errors.Trace(err)
	}
	if memprog.Token(w0&0xff) != memprog.TokenHost {
		return memprog.Param{}, false, nil
	}
	rest, err := d.mio.ReadTargetMem(ctx, d.paramBase+4, memprog.ParamSize/4-1)
	if err != nil {
		return memprog.Param{}, false, errors.Trace(err)
	}
	words := append([]uint32{w0}, rest...)
	return memprog.ReadParam(wordsToBytes(words, memprog.ParamSize)), true, nil
}

// writeParam pushes a whole block: payload words first, then the word
// carrying the token. That final write is the publication point.
func (d *Driver) writeParam(ctx context.Context, p memprog.Param) error {
	words := bytesToWords(memprog.EncodeParam(p), 0)
	if err := d.mio.WriteTargetMem(ctx, d.paramBase+4, words[1:]); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(d.mio.WriteTargetReg(ctx, d.paramBase, words[0]))
}

// consumeResult parks a posted completion and returns the block to the
// target, idle, so other interfaces can post theirs.
func (d *Driver) consumeResult(ctx context.Context, p memprog.Param) error {
	glog.V(2).Infof("if %d: result %s code 0x%08x", p.Interface, p.Status, p.Code)
	d.results[p.Interface] = p
	return errors.Trace(d.writeParam(ctx,
		memprog.Param{Status: memprog.StatusIdle, Token: memprog.TokenTarget}))
}

// Start issues a command: waits for the block to be host-owned and idle
// (consuming stray completions along the way), writes the command with
// Status=START, waits for the target's ACK and then frees the block. The
// two-phase ack lets data transfers and other interfaces' control traffic
// proceed while the command runs.
func (d *Driver) Start(ctx context.Context, iface uint8, cmd memprog.Cmd, p memprog.Param) error {
	err := d.poll(ctx, d.AckTimeout, "idle parameter block", func() (bool, error) {
		pp, ours, err := d.readParam(ctx)
		if err != nil || !ours {
			return false, err
		}
		switch {
		case pp.Status == memprog.StatusIdle:
			return true, nil
		case pp.Status.Terminal():
			return false, d.consumeResult(ctx, pp)
		default:
			return false, errors.Errorf("unexpected param status %s", pp.Status)
		}
	})
	if err != nil {
		return errors.Trace(err)
	}
	p.Interface = iface
	p.Command = cmd
	p.Status = memprog.StatusStart
	p.Token = memprog.TokenTarget
	glog.V(1).Infof("if %d: starting %s", iface, cmd)
	if err := d.writeParam(ctx, p); err != nil {
		return errors.Trace(err)
	}
	err = d.poll(ctx, d.AckTimeout, "command ACK", func() (bool, error) {
		pp, ours, err := d.readParam(ctx)
		if err != nil || !ours {
			return false, err
		}
		if pp.Status != memprog.StatusAck {
			return false, errors.Errorf("expected ACK, got %s", pp.Status)
		}
		return true, nil
	})
	if err != nil {
		return errors.Annotatef(err, "%s on if %d not acknowledged", cmd, iface)
	}
	return errors.Trace(d.writeParam(ctx,
		memprog.Param{Status: memprog.StatusIdle, Token: memprog.TokenTarget}))
}

// Result waits for the command on the given interface to post its terminal
// status and returns the full result block.
func (d *Driver) Result(ctx context.Context, iface uint8) (memprog.Param, error) {
	var res memprog.Param
	err := d.poll(ctx, d.CmdTimeout, "command result", func() (bool, error) {
		if p, ok := d.results[iface]; ok {
			delete(d.results, iface)
			res = p
			return true, nil
		}
		pp, ours, err := d.readParam(ctx)
		if err != nil || !ours {
			return false, err
		}
		if !pp.Status.Terminal() {
			return false, nil
		}
		// Park it; the next iteration picks it up if it is ours.
		return false, d.consumeResult(ctx, pp)
	})
	return res, errors.Trace(err)
}

func checkResult(p memprog.Param, cmd memprog.Cmd) error {
	if p.Status.OK() {
		return nil
	}
	return errors.Errorf("%s failed: %s (code 0x%08x)", cmd, p.Status, p.Code)
}

// Query discovers the buffer pool geometry and protocol version.
func (d *Driver) Query(ctx context.Context, iface uint8) (*Caps, error) {
	if err := d.Start(ctx, iface, memprog.CmdQueryCap, memprog.Param{}); err != nil {
		return nil, errors.Trace(err)
	}
	p, err := d.Result(ctx, iface)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := checkResult(p, memprog.CmdQueryCap); err != nil {
		return nil, errors.Trace(err)
	}
	caps := &Caps{
		Version:    p.Code,
		BDTBase:    p.P1,
		BufferBase: p.P2,
		NumBuffers: int(p.P3 >> 24),
		BufferSize: int(p.P3 & 0x00ffffff),
	}
	if caps.Version>>16 != memprog.MajorVersion {
		return nil, errors.Errorf("protocol version mismatch: target has 0x%08x, host speaks %d.%d.%d",
			caps.Version, memprog.MajorVersion, memprog.MinorVersion, memprog.PatchVersion)
	}
	if caps.NumBuffers <= 0 || caps.BufferSize <= 0 || caps.BufferSize%4 != 0 {
		return nil, errors.Errorf("implausible pool geometry %dx%d", caps.NumBuffers, caps.BufferSize)
	}
	glog.V(1).Infof("target: version 0x%08x, BDT @ 0x%08x, %d buffer(s) of %d @ 0x%08x",
		caps.Version, caps.BDTBase, caps.NumBuffers, caps.BufferSize, caps.BufferBase)
	d.caps = caps
	return caps, nil
}

func (d *Driver) ensureCaps(ctx context.Context) (*Caps, error) {
	if d.caps == nil {
		if _, err := d.Query(ctx, 0); err != nil {
			return nil, errors.Annotatef(err, "discovery")
		}
	}
	return d.caps, nil
}

// MassErase erases the whole region behind the interface.
func (d *Driver) MassErase(ctx context.Context, iface uint8) error {
	if err := d.Start(ctx, iface, memprog.CmdMassErase, memprog.Param{}); err != nil {
		return errors.Trace(err)
	}
	p, err := d.Result(ctx, iface)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(checkResult(p, memprog.CmdMassErase))
}

// EraseRange erases [addr, addr+length).
func (d *Driver) EraseRange(ctx context.Context, iface uint8, addr, length uint32) error {
	if err := d.Start(ctx, iface, memprog.CmdEraseRange,
		memprog.Param{P1: addr, P2: length}); err != nil {
		return errors.Trace(err)
	}
	p, err := d.Result(ctx, iface)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(checkResult(p, memprog.CmdEraseRange))
}

// ProgramVerify streams data to addr, then checks the CRC-32 of the
// target's read-back against one computed locally. Returns the CRC.
func (d *Driver) ProgramVerify(ctx context.Context, iface uint8, addr uint32, data []byte) (uint32, error) {
	if _, err := d.ensureCaps(ctx); err != nil {
		return 0, errors.Trace(err)
	}
	if err := d.Start(ctx, iface, memprog.CmdProgVerify, memprog.Param{}); err != nil {
		return 0, errors.Trace(err)
	}
	if err := d.writeStream(ctx, iface, addr, data); err != nil {
		return 0, errors.Annotatef(err, "data transfer")
	}
	p, err := d.Result(ctx, iface)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if err := checkResult(p, memprog.CmdProgVerify); err != nil {
		return 0, errors.Trace(err)
	}
	if want := memprog.Checksum(data); p.P1 != want {
		return p.P1, errors.Errorf("verification failed: target CRC 0x%08x, want 0x%08x", p.P1, want)
	}
	return p.P1, nil
}

// ReadCRC asks the target for a single CRC-32 over the given ranges.
func (d *Driver) ReadCRC(ctx context.Context, iface uint8, ranges []Range) (uint32, error) {
	if len(ranges) == 0 {
		return 0, errors.Errorf("no ranges")
	}
	if _, err := d.ensureCaps(ctx); err != nil {
		return 0, errors.Trace(err)
	}
	if err := d.Start(ctx, iface, memprog.CmdCRC, memprog.Param{}); err != nil {
		return 0, errors.Trace(err)
	}
	txSeq := uint8(0)
	for ri, r := range ranges {
		last := ri == len(ranges)-1
		seq := txSeq
		if last {
			seq |= memprog.SeqLast
		}
		idx, err := d.waitFreeBuffer(ctx)
		if err != nil {
			return 0, errors.Trace(err)
		}
		if err := d.sendBuffer(ctx, iface, idx, r.Addr, nil, r.Length, seq); err != nil {
			return 0, errors.Trace(err)
		}
		if !last {
			txSeq = memprog.NextSeq(txSeq)
		}
	}
	p, err := d.Result(ctx, iface)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if err := checkResult(p, memprog.CmdCRC); err != nil {
		return 0, errors.Trace(err)
	}
	return p.P1, nil
}
