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

package memprog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamLayout(t *testing.T) {
	b := make([]byte, ParamSize)
	WriteParamPayload(b, Param{
		Status:    StatusStart,
		Interface: 2,
		Command:   CmdProgVerify,
		Code:      0x11223344,
		P1:        0x08000000,
		P2:        0x00000100,
		P3:        0xa1a2a3a4,
		P4:        0xb1b2b3b4,
		P5:        0xc1c2c3c4,
		P6:        0xd1d2d3d4,
	})
	SetParamToken(b, TokenTarget)

	want := []byte{
		0x80, 0x01, 0x02, 0x10, // Token, Status, Interface, Command
		0x44, 0x33, 0x22, 0x11, // Code
		0xd4, 0xd3, 0xd2, 0xd1, // P6
		0xc4, 0xc3, 0xc2, 0xc1, // P5
		0xb4, 0xb3, 0xb2, 0xb1, // P4
		0xa4, 0xa3, 0xa2, 0xa1, // P3
		0x00, 0x01, 0x00, 0x00, // P2
		0x00, 0x00, 0x00, 0x08, // P1
	}
	require.Equal(t, want, b)

	p := ReadParam(b)
	assert.Equal(t, TokenTarget, p.Token)
	assert.Equal(t, StatusStart, p.Status)
	assert.Equal(t, uint8(2), p.Interface)
	assert.Equal(t, CmdProgVerify, p.Command)
	assert.Equal(t, uint32(0x11223344), p.Code)
	assert.Equal(t, uint32(0x08000000), p.P1)
	assert.Equal(t, uint32(0xd1d2d3d4), p.P6)
}

func TestWriteParamPayloadLeavesToken(t *testing.T) {
	b := make([]byte, ParamSize)
	SetParamToken(b, TokenTarget)
	WriteParamPayload(b, Param{Token: TokenHost, Status: StatusOK})
	// Payload writes must never move ownership.
	assert.Equal(t, TokenTarget, ParamToken(b))
}

func TestEncodeParam(t *testing.T) {
	p := Param{Token: TokenTarget, Status: StatusStart, Command: CmdQueryCap, P1: 0xdeadbeef}
	b := EncodeParam(p)
	require.Len(t, b, ParamSize)
	assert.Equal(t, p, ReadParam(b))
}

func TestBDTLayout(t *testing.T) {
	bdt := make([]byte, 4*BDTEntrySize)
	e := BDTEntry(bdt, 1)
	WriteBDTPayload(e, BDT{
		Status:    BufFull,
		Interface: 1,
		Sequence:  0x83,
		Address:   0x20001000,
		Length:    512,
	})
	SetBDTToken(e, TokenHost)

	want := []byte{
		0x00, 0x02, 0x01, 0x83, // Token, Status, Interface, Sequence
		0x00, 0x00, 0x00, 0x00, // padding
		0x00, 0x10, 0x00, 0x20, // Address
		0x00, 0x02, 0x00, 0x00, // Length
	}
	require.Equal(t, want, e)

	// Entry 1 must not spill into its neighbours.
	for _, i := range []int{0, 2, 3} {
		assert.Equal(t, make([]byte, BDTEntrySize), BDTEntry(bdt, i), "entry %d", i)
	}

	d := ReadBDT(e)
	assert.Equal(t, BufFull, d.Status)
	assert.Equal(t, uint8(0x83), d.Sequence)
	assert.True(t, SeqIsLast(d.Sequence))
	assert.Equal(t, uint8(3), SeqNum(d.Sequence))
	assert.Equal(t, uint32(0x20001000), d.Address)
	assert.Equal(t, uint32(512), d.Length)
}

func TestWriteBDTPayloadLeavesToken(t *testing.T) {
	e := make([]byte, BDTEntrySize)
	SetBDTToken(e, TokenTarget)
	WriteBDTPayload(e, BDT{Token: TokenHost, Status: BufFree})
	assert.Equal(t, TokenTarget, BDTToken(e))
}
