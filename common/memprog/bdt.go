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

// Buffer descriptor layout, 16 bytes per pool entry.
const (
	BDTEntrySize = 16

	BDTOffToken     = 0
	BDTOffStatus    = 1
	BDTOffInterface = 2
	BDTOffSequence  = 3
	// 4 bytes of padding at offset 4.
	BDTOffAddress = 8
	BDTOffLength  = 12
)

// BDT is the decoded form of one buffer descriptor.
type BDT struct {
	Token     Token
	Status    BufStatus
	Interface uint8
	Sequence  uint8
	Address   uint32
	Length    uint32
}

func (d BDT) String() string {
	return fmt.Sprintf("[%s %s if %d seq 0x%02x addr 0x%08x len %d]",
		d.Token, d.Status, d.Interface, d.Sequence, d.Address, d.Length)
}

// BDTEntry returns the 16-byte slice of descriptor i within the table.
func BDTEntry(bdt []byte, i int) []byte {
	return bdt[i*BDTEntrySize : (i+1)*BDTEntrySize]
}

// BDTToken returns the current owner of a descriptor (and its data buffer).
func BDTToken(e []byte) Token {
	return Token(e[BDTOffToken])
}

// SetBDTToken writes only the descriptor's token byte. Must follow a
// barrier; this is the per-descriptor publication point.
func SetBDTToken(e []byte, t Token) {
	e[BDTOffToken] = uint8(t)
}

// SetBDTStatus writes only the descriptor's status byte.
func SetBDTStatus(e []byte, s BufStatus) {
	e[BDTOffStatus] = uint8(s)
}

// ReadBDT decodes a descriptor, token included.
func ReadBDT(e []byte) BDT {
	return BDT{
		Token:     Token(e[BDTOffToken]),
		Status:    BufStatus(e[BDTOffStatus]),
		Interface: e[BDTOffInterface],
		Sequence:  e[BDTOffSequence],
		Address:   binary.LittleEndian.Uint32(e[BDTOffAddress:]),
		Length:    binary.LittleEndian.Uint32(e[BDTOffLength:]),
	}
}

// WriteBDTPayload encodes every field except the token byte.
// d.Token is ignored; ownership only ever changes through SetBDTToken.
func WriteBDTPayload(e []byte, d BDT) {
	e[BDTOffStatus] = uint8(d.Status)
	e[BDTOffInterface] = d.Interface
	e[BDTOffSequence] = d.Sequence
	binary.LittleEndian.PutUint32(e[BDTOffAddress:], d.Address)
	binary.LittleEndian.PutUint32(e[BDTOffLength:], d.Length)
}
