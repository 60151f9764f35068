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
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/memprog/common/memprog"
	"github.com/mongoose-os/memprog/target"
	"github.com/mongoose-os/memprog/target/ramflash"
)

// The tests run a complete target in-process: the driver's Idle hook ticks
// the dispatcher, so host and target advance in deterministic lockstep over
// a shared arena, exactly as they would over SWD (minus the wire).

const (
	tParamBase = 0x20000000
	tNumBufs   = 4
	tBufSize   = 64

	tFlashBase   = 0x08000000
	tFlashSize   = 16 * 1024
	tFlashSector = 1024
)

type tgt struct {
	disp *target.Dispatcher
	devs []*ramflash.Device
}

func newDriverPair(t *testing.T, devCfgs ...ramflash.Config) (*Driver, *tgt) {
	if len(devCfgs) == 0 {
		devCfgs = []ramflash.Config{{
			Base: tFlashBase, Size: tFlashSize, SectorSize: tFlashSector,
		}}
	}
	tg := &tgt{}
	var drivers []target.Driver
	for _, c := range devCfgs {
		fd, err := ramflash.New(c)
		require.NoError(t, err)
		tg.devs = append(tg.devs, fd)
		drivers = append(drivers, fd)
	}

	arena := make([]byte, memprog.ParamSize+tNumBufs*memprog.BDTEntrySize+tNumBufs*tBufSize)
	bdtOff := memprog.ParamSize
	bufOff := bdtOff + tNumBufs*memprog.BDTEntrySize
	disp, err := target.New(target.Config{
		Param:      arena[:bdtOff],
		BDT:        arena[bdtOff:bufOff],
		Buffers:    arena[bufOff:],
		ParamBase:  tParamBase,
		BDTBase:    tParamBase + uint32(bdtOff),
		BufferBase: tParamBase + uint32(bufOff),
		NumBuffers: tNumBufs,
		BufferSize: tBufSize,
	}, drivers...)
	require.NoError(t, err)
	require.NoError(t, disp.Init())
	tg.disp = disp

	d := New(NewRAMLink(tParamBase, arena), tParamBase)
	d.AckTimeout = 2 * time.Second
	d.CmdTimeout = 5 * time.Second
	d.Idle = func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		disp.Run()
		return nil
	}
	return d, tg
}

func TestQueryCaps(t *testing.T) {
	d, _ := newDriverPair(t)
	caps, err := d.Query(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00020000), caps.Version)
	assert.Equal(t, uint32(tParamBase+memprog.ParamSize), caps.BDTBase)
	assert.Equal(t, tNumBufs, caps.NumBuffers)
	assert.Equal(t, tBufSize, caps.BufferSize)
}

func TestProgramVerifySingleBuffer(t *testing.T) {
	d, tg := newDriverPair(t)
	ctx := context.Background()
	data := []byte{0xde, 0xad, 0xbe, 0xef}
	crc, err := d.ProgramVerify(ctx, 0, tFlashBase, data)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x7c9ca35a), crc)
	assert.Equal(t, data, tg.devs[0].Bytes()[:4])
}

func TestProgramVerifyMultiBuffer(t *testing.T) {
	d, tg := newDriverPair(t)
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(1))
	data := make([]byte, 10*tBufSize+13) // several pipelined buffers, odd tail
	rnd.Read(data)
	crc, err := d.ProgramVerify(ctx, 0, tFlashBase+tFlashSector, data)
	require.NoError(t, err)
	assert.Equal(t, memprog.Checksum(data), crc)
	assert.Equal(t, data, tg.devs[0].Bytes()[tFlashSector:tFlashSector+len(data)])
}

func TestProgramVerifyEmpty(t *testing.T) {
	d, _ := newDriverPair(t)
	crc, err := d.ProgramVerify(context.Background(), 0, tFlashBase, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), crc)
}

func TestProgramNonErasedFails(t *testing.T) {
	d, _ := newDriverPair(t)
	ctx := context.Background()
	_, err := d.ProgramVerify(ctx, 0, tFlashBase, []byte{0x00, 0x11})
	require.NoError(t, err)
	_, err = d.ProgramVerify(ctx, 0, tFlashBase, []byte{0xff, 0xff})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_EXECUTION")
}

func TestEraseRange(t *testing.T) {
	d, tg := newDriverPair(t)
	ctx := context.Background()
	_, err := d.ProgramVerify(ctx, 0, tFlashBase, []byte{0, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, d.EraseRange(ctx, 0, tFlashBase, tFlashSector))
	assert.Equal(t, byte(0xff), tg.devs[0].Bytes()[0])
}

func TestEraseRangeBadParams(t *testing.T) {
	d, _ := newDriverPair(t)
	err := d.EraseRange(context.Background(), 0, tFlashBase, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_PARAM")
}

func TestMassErase(t *testing.T) {
	d, tg := newDriverPair(t)
	ctx := context.Background()
	_, err := d.ProgramVerify(ctx, 0, tFlashBase, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.NoError(t, d.MassErase(ctx, 0))
	for _, b := range tg.devs[0].Bytes() {
		require.Equal(t, byte(0xff), b)
	}
}

func TestReadMemAndCRCRoundTrip(t *testing.T) {
	d, _ := newDriverPair(t)
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(2))
	data := make([]byte, 5*tBufSize-7)
	rnd.Read(data)
	_, err := d.ProgramVerify(ctx, 0, tFlashBase, data)
	require.NoError(t, err)

	back, err := d.ReadMem(ctx, 0, tFlashBase, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, back)

	crc, err := d.ReadCRC(ctx, 0, []Range{{Addr: tFlashBase, Length: uint32(len(data))}})
	require.NoError(t, err)
	// READ then CRC over the same range agrees with a local CRC of the
	// returned bytes.
	assert.Equal(t, memprog.Checksum(back), crc)
}

func TestReadCRCMultipleRanges(t *testing.T) {
	d, _ := newDriverPair(t)
	ctx := context.Background()
	data := []byte{0xde, 0xad, 0xbe, 0xef}
	_, err := d.ProgramVerify(ctx, 0, tFlashBase, data[:2])
	require.NoError(t, err)
	_, err = d.ProgramVerify(ctx, 0, tFlashBase+2, data[2:])
	require.NoError(t, err)
	crc, err := d.ReadCRC(ctx, 0, []Range{
		{Addr: tFlashBase, Length: 2},
		{Addr: tFlashBase + 2, Length: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x7c9ca35a), crc)
}

func TestReadMemZeroLength(t *testing.T) {
	d, _ := newDriverPair(t)
	data, err := d.ReadMem(context.Background(), 0, tFlashBase, 0)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestUnknownCommand(t *testing.T) {
	d, _ := newDriverPair(t)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx, 0, memprog.Cmd(0x7e), memprog.Param{}))
	p, err := d.Result(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, memprog.StatusErrImplementation, p.Status)
}

func TestTwoInterfacesInterleaved(t *testing.T) {
	d, tg := newDriverPair(t,
		ramflash.Config{Base: 0x08000000, Size: 8 * 1024, SectorSize: 1024, SectorsPerTick: 1},
		ramflash.Config{Base: 0x20040000, Size: 4 * 1024, SectorSize: 1024, SectorsPerTick: 1},
	)
	ctx := context.Background()
	_, err := d.ProgramVerify(ctx, 0, 0x08000000, []byte{1})
	require.NoError(t, err)
	_, err = d.ProgramVerify(ctx, 1, 0x20040000, []byte{2})
	require.NoError(t, err)

	// A slow erase on interface 0 must not block command ingest and
	// completion on interface 1.
	require.NoError(t, d.Start(ctx, 0, memprog.CmdMassErase, memprog.Param{}))
	require.NoError(t, d.Start(ctx, 1, memprog.CmdMassErase, memprog.Param{}))
	p1, err := d.Result(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, memprog.StatusOK, p1.Status)
	p0, err := d.Result(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, memprog.StatusOK, p0.Status)

	assert.Equal(t, byte(0xff), tg.devs[0].Bytes()[0])
	assert.Equal(t, byte(0xff), tg.devs[1].Bytes()[0])
}

func TestCapsCached(t *testing.T) {
	d, _ := newDriverPair(t)
	ctx := context.Background()
	caps, err := d.Query(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, caps, d.Caps())
	// High-level ops reuse the discovered geometry without re-querying.
	_, err = d.ProgramVerify(ctx, 0, tFlashBase, []byte{0x42})
	require.NoError(t, err)
}
