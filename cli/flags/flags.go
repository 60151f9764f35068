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

package flags

import (
	"time"

	flag "github.com/spf13/pflag"
)

var (
	Port = flag.String("port", "", "Serial port of the memory gateway, "+
		"or 'sim:' for an in-process simulated target")
	BaudRate  = flag.Uint("baud-rate", 115200, "Serial port speed")
	ParamBase = flag.Uint32("param-base", 0,
		"Address of the parameter block. 0 takes it from the device config.")
	Iface        = flag.Uint8("iface", 0, "Interface (memory region) index")
	Addr         = flag.Uint32("addr", 0, "Target memory address")
	Length       = flag.Uint32("length", 0, "Length in bytes")
	Mass         = flag.Bool("mass", false, "Erase the interface's entire region")
	DeviceConfig = flag.String("device-config", "",
		"YAML device description (interfaces, pool geometry). Built-in defaults if empty.")
	Timeout = flag.Duration("timeout", 60*time.Second, "Overall operation timeout")
)
