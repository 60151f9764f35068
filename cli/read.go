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

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/memprog/cli/flags"
	"github.com/mongoose-os/memprog/cli/ourutil"
	"github.com/mongoose-os/memprog/host"
)

func read(ctx context.Context) error {
	fname := flag.Arg(1)
	if fname == "" {
		return errors.Errorf("usage: memprog read FILE --port ... --addr ... --length ...")
	}
	drv, cleanup, err := openDriver(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer cleanup()

	ourutil.Reportf("Reading %d bytes at 0x%08x...", *flags.Length, *flags.Addr)
	data, err := drv.ReadMem(ctx, *flags.Iface, *flags.Addr, int(*flags.Length))
	if err != nil {
		return errors.Trace(err)
	}
	if err := ioutil.WriteFile(fname, data, 0644); err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("Wrote %d bytes to %s", len(data), fname)
	return nil
}

func crcRange(ctx context.Context) error {
	drv, cleanup, err := openDriver(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer cleanup()

	crc, err := drv.ReadCRC(ctx, *flags.Iface, []host.Range{
		{Addr: *flags.Addr, Length: *flags.Length},
	})
	if err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("CRC32(0x%08x + %d) = 0x%08x", *flags.Addr, *flags.Length, crc)
	return nil
}
