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

	"github.com/fatih/color"
	"github.com/juju/errors"

	"github.com/mongoose-os/memprog/cli/flags"
	"github.com/mongoose-os/memprog/cli/ourutil"
)

func erase(ctx context.Context) error {
	drv, cleanup, err := openDriver(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer cleanup()

	if *flags.Mass {
		ourutil.Reportf("Mass-erasing interface %d...", *flags.Iface)
		if err := drv.MassErase(ctx, *flags.Iface); err != nil {
			return errors.Trace(err)
		}
	} else {
		if *flags.Length == 0 {
			return errors.Errorf("--length is required unless --mass is given")
		}
		ourutil.Reportf("Erasing 0x%08x + %d...", *flags.Addr, *flags.Length)
		if err := drv.EraseRange(ctx, *flags.Iface, *flags.Addr, *flags.Length); err != nil {
			return errors.Trace(err)
		}
	}
	ourutil.Reportf("%s", color.GreenString("Erased."))
	return nil
}
