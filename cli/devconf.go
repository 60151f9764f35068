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
	"io/ioutil"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"
)

// DevConf describes a target: where the parameter block lives, the buffer
// pool geometry and the memory regions behind each interface. The same
// file drives the simulator and documents a real target's layout.
type DevConf struct {
	ParamBase  uint32      `yaml:"param_base"`
	Pool       PoolConf    `yaml:"pool"`
	Interfaces []IfaceConf `yaml:"interfaces"`
}

type PoolConf struct {
	Buffers    int `yaml:"buffers"`
	BufferSize int `yaml:"buffer_size"`
}

type IfaceConf struct {
	Name       string `yaml:"name"`
	Base       uint32 `yaml:"base"`
	Size       int    `yaml:"size"`
	SectorSize int    `yaml:"sector_size"`
}

func defaultDevConf() *DevConf {
	return &DevConf{
		ParamBase: 0x20000000,
		Pool:      PoolConf{Buffers: 4, BufferSize: 1024},
		Interfaces: []IfaceConf{
			{Name: "flash", Base: 0x08000000, Size: 256 * 1024, SectorSize: 4096},
		},
	}
}

func loadDevConf(path string) (*DevConf, error) {
	if path == "" {
		return defaultDevConf(), nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var dc DevConf
	if err := yaml.UnmarshalStrict(data, &dc); err != nil {
		return nil, errors.Annotatef(err, "invalid device config %s", path)
	}
	if err := dc.validate(); err != nil {
		return nil, errors.Annotatef(err, "invalid device config %s", path)
	}
	return &dc, nil
}

func (dc *DevConf) validate() error {
	if dc.ParamBase == 0 || dc.ParamBase%4 != 0 {
		return errors.Errorf("param_base must be a nonzero word-aligned address")
	}
	if dc.Pool.Buffers <= 0 || dc.Pool.BufferSize <= 0 || dc.Pool.BufferSize%4 != 0 {
		return errors.Errorf("pool geometry %dx%d is invalid",
			dc.Pool.Buffers, dc.Pool.BufferSize)
	}
	if len(dc.Interfaces) == 0 {
		return errors.Errorf("at least one interface is required")
	}
	for i, ifc := range dc.Interfaces {
		if ifc.Size <= 0 || ifc.SectorSize <= 0 || ifc.Size%ifc.SectorSize != 0 {
			return errors.Errorf("interface %d (%s): bad geometry", i, ifc.Name)
		}
	}
	return nil
}
