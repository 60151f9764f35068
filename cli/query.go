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

package main

import (
	"context"

	"github.com/juju/errors"

	"github.com/mongoose-os/memprog/cli/flags"
	"github.com/mongoose-os/memprog/cli/ourutil"
)

func query(ctx context.Context) error {
	drv, cleanup, err := openDriver(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer cleanup()
	caps, err := drv.Query(ctx, *flags.Iface)
	if err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("Protocol version: %d.%d.%d",
		caps.Version>>16, (caps.Version>>8)&0xff, caps.Version&0xff)
	ourutil.Reportf("BDT base:         0x%08x", caps.BDTBase)
	ourutil.Reportf("Buffer base:      0x%08x", caps.BufferBase)
	ourutil.Reportf("Buffers:          %d x %d bytes", caps.NumBuffers, caps.BufferSize)
	return nil
}
