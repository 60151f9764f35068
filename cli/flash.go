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
	"io/ioutil"
	"time"

	"github.com/fatih/color"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/memprog/cli/flags"
	"github.com/mongoose-os/memprog/cli/ourutil"
)

func flash(ctx context.Context) error {
	fname := flag.Arg(1)
	if fname == "" {
		return errors.Errorf("usage: memprog flash FILE --port ... --addr ...")
	}
	data, err := ioutil.ReadFile(fname)
	if err != nil {
		return errors.Trace(err)
	}
	drv, cleanup, err := openDriver(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer cleanup()

	ourutil.Reportf("Programming %d bytes at 0x%08x...", len(data), *flags.Addr)
	start := time.Now()
	crc, err := drv.ProgramVerify(ctx, *flags.Iface, *flags.Addr, data)
	if err != nil {
		return errors.Annotatef(err, "flashing failed")
	}
	elapsed := time.Since(start)
	ourutil.Reportf("%s %d bytes in %.2fs (CRC 0x%08x)",
		color.GreenString("Programmed and verified"), len(data), elapsed.Seconds(), crc)
	return nil
}
