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

package serialmem

import (
	"bufio"
	"io"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// SLIP framing, https://tools.ietf.org/html/rfc1055. The gateway wire is a
// dumb byte pipe; SLIP gives it frame boundaries and resynchronization
// after garbage.
const (
	slipFrameDelimiter       = 0xc0
	slipEscape               = 0xdb
	slipEscapeFrameDelimiter = 0xdc
	slipEscapeEscape         = 0xdd
)

type slipCodec struct {
	r *bufio.Reader
	w io.Writer
}

func newSLIPCodec(rw io.ReadWriter) *slipCodec {
	return &slipCodec{r: bufio.NewReader(rw), w: rw}
}

// recvFrame reads one complete frame, skipping empty frames (back-to-back
// delimiters are legal filler on a SLIP wire).
func (sc *slipCodec) recvFrame(max int) ([]byte, error) {
	var frame []byte
	inFrame := false
	esc := false
	for {
		b, err := sc.r.ReadByte()
		if err != nil {
			return nil, errors.Annotatef(err, "reading frame")
		}
		if !inFrame {
			if b != slipFrameDelimiter {
				// Garbage between frames; resync on the next delimiter.
				glog.V(4).Infof("skipping stray byte 0x%02x", b)
				continue
			}
			inFrame = true
			continue
		}
		if esc {
			switch b {
			case slipEscapeFrameDelimiter:
				frame = append(frame, slipFrameDelimiter)
			case slipEscapeEscape:
				frame = append(frame, slipEscape)
			default:
				return nil, errors.Errorf("invalid SLIP escape 0x%02x", b)
			}
			esc = false
			continue
		}
		switch b {
		case slipFrameDelimiter:
			if len(frame) == 0 {
				continue
			}
			glog.V(4).Infof("<= (%d bytes)", len(frame))
			return frame, nil
		case slipEscape:
			esc = true
		default:
			frame = append(frame, b)
		}
		if len(frame) > max {
			return nil, errors.Errorf("frame too long (> %d)", max)
		}
	}
}

func (sc *slipCodec) sendFrame(frame []byte) error {
	buf := make([]byte, 0, len(frame)+8)
	buf = append(buf, slipFrameDelimiter)
	for _, b := range frame {
		switch b {
		case slipFrameDelimiter:
			buf = append(buf, slipEscape, slipEscapeFrameDelimiter)
		case slipEscape:
			buf = append(buf, slipEscape, slipEscapeEscape)
		default:
			buf = append(buf, b)
		}
	}
	buf = append(buf, slipFrameDelimiter)
	glog.V(4).Infof("=> (%d bytes)", len(frame))
	if _, err := sc.w.Write(buf); err != nil {
		return errors.Annotatef(err, "writing frame")
	}
	return nil
}
