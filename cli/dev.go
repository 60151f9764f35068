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
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/memprog/cli/flags"
	"github.com/mongoose-os/memprog/common/memprog"
	"github.com/mongoose-os/memprog/host"
	"github.com/mongoose-os/memprog/host/serialmem"
	"github.com/mongoose-os/memprog/target"
	"github.com/mongoose-os/memprog/target/ramflash"
)

// openDriver builds the host driver for --port: either a serial memory
// gateway or a fully simulated target living in this process, with its
// dispatcher driven from the driver's polling loop.
func openDriver(ctx context.Context) (*host.Driver, func(), error) {
	dc, err := loadDevConf(*flags.DeviceConfig)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	paramBase := dc.ParamBase
	if *flags.ParamBase != 0 {
		paramBase = *flags.ParamBase
	}

	if strings.HasPrefix(*flags.Port, "sim:") {
		drv, err := simDriver(dc, paramBase)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		return drv, func() {}, nil
	}

	conn, err := serialmem.Open(*flags.Port, *flags.BaudRate)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	drv := host.New(conn, paramBase)
	return drv, func() { conn.Close() }, nil
}

func simDriver(dc *DevConf, paramBase uint32) (*host.Driver, error) {
	nb, bs := dc.Pool.Buffers, dc.Pool.BufferSize
	bdtBase := paramBase + memprog.ParamSize
	bufBase := bdtBase + uint32(nb*memprog.BDTEntrySize)
	arena := make([]byte, memprog.ParamSize+nb*memprog.BDTEntrySize+nb*bs)

	var drivers []target.Driver
	for _, ic := range dc.Interfaces {
		fd, err := ramflash.New(ramflash.Config{
			Base:       ic.Base,
			Size:       ic.Size,
			SectorSize: ic.SectorSize,
		})
		if err != nil {
			return nil, errors.Annotatef(err, "interface %s", ic.Name)
		}
		drivers = append(drivers, fd)
	}

	disp, err := target.New(target.Config{
		Param:      arena[:memprog.ParamSize],
		BDT:        arena[memprog.ParamSize : memprog.ParamSize+nb*memprog.BDTEntrySize],
		Buffers:    arena[memprog.ParamSize+nb*memprog.BDTEntrySize:],
		ParamBase:  paramBase,
		BDTBase:    bdtBase,
		BufferBase: bufBase,
		NumBuffers: nb,
		BufferSize: bs,
	}, drivers...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := disp.Init(); err != nil {
		return nil, errors.Trace(err)
	}
	glog.Infof("simulated target: %d interface(s), param block @ 0x%08x", len(drivers), paramBase)

	drv := host.New(host.NewRAMLink(paramBase, arena), paramBase)
	drv.Idle = func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		disp.Run()
		return nil
	}
	return drv, nil
}
