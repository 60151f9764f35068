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
	"encoding/binary"

	"github.com/juju/errors"
)

// MemReader reads target memory, word-based, the way a debug probe does.
type MemReader interface {
	// ReadTargetReg reads a single 32-bit word from the target.
	ReadTargetReg(ctx context.Context, addr uint32) (uint32, error)
	// ReadTargetMem reads length words at the specified address in the
	// target's memory. addr must be word-aligned.
	ReadTargetMem(ctx context.Context, addr uint32, length int) ([]uint32, error)
}

// MemWriter writes target memory.
type MemWriter interface {
	// WriteTargetReg writes a single 32-bit word to the target.
	WriteTargetReg(ctx context.Context, addr uint32, value uint32) error
	// WriteTargetMem writes data at the specified address to the target's
	// memory. addr must be word-aligned.
	WriteTargetMem(ctx context.Context, addr uint32, data []uint32) error
}

// MemReaderWriter is the transport the driver needs: SWD MEM-AP, a serial
// gateway, or an in-process arena all fit behind it.
type MemReaderWriter interface {
	MemReader
	MemWriter
}

// RAMLink is a MemReaderWriter over an in-process byte arena, for tests and
// the simulated target.
type RAMLink struct {
	base uint32
	mem  []byte
}

func NewRAMLink(base uint32, mem []byte) *RAMLink {
	return &RAMLink{base: base, mem: mem}
}

func (rl *RAMLink) slice(addr uint32, n int) ([]byte, error) {
	if addr%4 != 0 {
		return nil, errors.Errorf("addr must be word-aligned, got 0x%x", addr)
	}
	off := int64(addr) - int64(rl.base)
	if off < 0 || off+int64(n) > int64(len(rl.mem)) {
		return nil, errors.Errorf("access 0x%08x+%d outside arena", addr, n)
	}
	return rl.mem[off : off+int64(n)], nil
}

func (rl *RAMLink) ReadTargetReg(ctx context.Context, addr uint32) (uint32, error) {
	s, err := rl.slice(addr, 4)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return binary.LittleEndian.Uint32(s), nil
}

func (rl *RAMLink) ReadTargetMem(ctx context.Context, addr uint32, length int) ([]uint32, error) {
	s, err := rl.slice(addr, length*4)
	if err != nil {
		return nil, errors.Trace(err)
	}
	res := make([]uint32, length)
	for i := range res {
		res[i] = binary.LittleEndian.Uint32(s[i*4:])
	}
	return res, nil
}

func (rl *RAMLink) WriteTargetReg(ctx context.Context, addr uint32, value uint32) error {
	s, err := rl.slice(addr, 4)
	if err != nil {
		return errors.Trace(err)
	}
	binary.LittleEndian.PutUint32(s, value)
	return nil
}

func (rl *RAMLink) WriteTargetMem(ctx context.Context, addr uint32, data []uint32) error {
	s, err := rl.slice(addr, len(data)*4)
	if err != nil {
		return errors.Trace(err)
	}
	for i, w := range data {
		binary.LittleEndian.PutUint32(s[i*4:], w)
	}
	return nil
}

// bytesToWords packs data into little-endian words, padding the trailing
// partial word with pad bytes.
func bytesToWords(data []byte, pad byte) []uint32 {
	n := (len(data) + 3) / 4
	res := make([]uint32, n)
	for i := 0; i < n; i++ {
		var w [4]byte
		for j := 0; j < 4; j++ {
			if i*4+j < len(data) {
				w[j] = data[i*4+j]
			} else {
				w[j] = pad
			}
		}
		res[i] = binary.LittleEndian.Uint32(w[:])
	}
	return res
}

// wordsToBytes unpacks little-endian words and trims to length.
func wordsToBytes(words []uint32, length int) []byte {
	res := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(res[i*4:], w)
	}
	return res[:length]
}
