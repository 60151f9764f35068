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
	"encoding/binary"
	"fmt"
)

// The parameter block is a 32-byte packed record shared between two agents
// running on different machines with possibly different compilers, so it is
// never mapped onto a native struct: all access goes through explicit
// offsets and little-endian accessors.
const (
	ParamSize = 32

	ParamOffToken     = 0
	ParamOffStatus    = 1
	ParamOffInterface = 2
	ParamOffCommand   = 3
	ParamOffCode      = 4
	// P6..P1 are laid out in reverse so that P6 can be repurposed later
	// without moving the rest.
	ParamOffP6 = 8
	ParamOffP5 = 12
	ParamOffP4 = 16
	ParamOffP3 = 20
	ParamOffP2 = 24
	ParamOffP1 = 28
)

// Param is the decoded form of the parameter block.
type Param struct {
	Token     Token
	Status    Status
	Interface uint8
	Command   Cmd
	Code      uint32
	P1        uint32
	P2        uint32
	P3        uint32
	P4        uint32
	P5        uint32
	P6        uint32
}

func (p Param) String() string {
	return fmt.Sprintf(
		"[%s %s if %d cmd %s code 0x%08x p1 0x%08x p2 0x%08x p3 0x%08x]",
		p.Token, p.Status, p.Interface, p.Command, p.Code, p.P1, p.P2, p.P3)
}

// ParamToken returns the current owner of the parameter block.
func ParamToken(b []byte) Token {
	return Token(b[ParamOffToken])
}

// SetParamToken writes only the token byte. The caller must have issued a
// barrier after the payload writes: the token transfer is the publication
// point of everything else in the block.
func SetParamToken(b []byte, t Token) {
	b[ParamOffToken] = uint8(t)
}

// ReadParam decodes the whole block, token included.
func ReadParam(b []byte) Param {
	return Param{
		Token:     Token(b[ParamOffToken]),
		Status:    Status(b[ParamOffStatus]),
		Interface: b[ParamOffInterface],
		Command:   Cmd(b[ParamOffCommand]),
		Code:      binary.LittleEndian.Uint32(b[ParamOffCode:]),
		P6:        binary.LittleEndian.Uint32(b[ParamOffP6:]),
		P5:        binary.LittleEndian.Uint32(b[ParamOffP5:]),
		P4:        binary.LittleEndian.Uint32(b[ParamOffP4:]),
		P3:        binary.LittleEndian.Uint32(b[ParamOffP3:]),
		P2:        binary.LittleEndian.Uint32(b[ParamOffP2:]),
		P1:        binary.LittleEndian.Uint32(b[ParamOffP1:]),
	}
}

// WriteParamPayload encodes every field except the token byte.
// p.Token is ignored; ownership only ever changes through SetParamToken.
func WriteParamPayload(b []byte, p Param) {
	b[ParamOffStatus] = uint8(p.Status)
	b[ParamOffInterface] = p.Interface
	b[ParamOffCommand] = uint8(p.Command)
	binary.LittleEndian.PutUint32(b[ParamOffCode:], p.Code)
	binary.LittleEndian.PutUint32(b[ParamOffP6:], p.P6)
	binary.LittleEndian.PutUint32(b[ParamOffP5:], p.P5)
	binary.LittleEndian.PutUint32(b[ParamOffP4:], p.P4)
	binary.LittleEndian.PutUint32(b[ParamOffP3:], p.P3)
	binary.LittleEndian.PutUint32(b[ParamOffP2:], p.P2)
	binary.LittleEndian.PutUint32(b[ParamOffP1:], p.P1)
}

// EncodeParam encodes the whole block, token included, into a fresh
// 32-byte slice. Used by the host, which pushes the block over the wire as
// words rather than mutating it in place.
func EncodeParam(p Param) []byte {
	b := make([]byte, ParamSize)
	WriteParamPayload(b, p)
	b[ParamOffToken] = uint8(p.Token)
	return b
}
