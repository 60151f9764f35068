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
	"hash"
	"hash/crc32"
)

// Both agents verify data with the standard bit-reflected CRC-32
// (polynomial 0xedb88320, initial ~0, final complement), which is exactly
// crc32.IEEE. PROG_VERIFY and CRC results must match a host-side Checksum
// over the same bytes.

// NewChecksum returns a streaming CRC-32 accumulator.
func NewChecksum() hash.Hash32 {
	return crc32.NewIEEE()
}

// Checksum computes the CRC-32 of data in one go.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
