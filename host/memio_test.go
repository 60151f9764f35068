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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordPacking(t *testing.T) {
	assert.Empty(t, bytesToWords(nil, 0))
	assert.Equal(t, []uint32{0x04030201}, bytesToWords([]byte{1, 2, 3, 4}, 0xff))
	assert.Equal(t, []uint32{0xffffff01}, bytesToWords([]byte{1}, 0xff))
	assert.Equal(t, []byte{1, 2, 3}, wordsToBytes([]uint32{0x04030201}, 3))
}

func TestRAMLink(t *testing.T) {
	ctx := context.Background()
	mem := make([]byte, 64)
	rl := NewRAMLink(0x1000, mem)

	require.NoError(t, rl.WriteTargetReg(ctx, 0x1004, 0xdeadbeef))
	assert.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde}, mem[4:8])

	v, err := rl.ReadTargetReg(ctx, 0x1004)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v)

	require.NoError(t, rl.WriteTargetMem(ctx, 0x1008, []uint32{1, 2}))
	words, err := rl.ReadTargetMem(ctx, 0x1008, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, words)

	_, err = rl.ReadTargetReg(ctx, 0x0ffc)
	assert.Error(t, err, "below the arena")
	_, err = rl.ReadTargetReg(ctx, 0x1040)
	assert.Error(t, err, "beyond the arena")
	_, err = rl.ReadTargetReg(ctx, 0x1001)
	assert.Error(t, err, "unaligned")
}
