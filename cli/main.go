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

// The memprog command drives a memprog-enabled target: query, erase,
// program/verify, read and CRC of its memory regions, over a serial memory
// gateway or against an in-process simulated target.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/memprog/cli/flags"
	"github.com/mongoose-os/memprog/common/pflagenv"
	"github.com/mongoose-os/memprog/version"
)

const (
	envPrefix = "MEMPROG_"
)

var (
	versionFlag = flag.Bool("version", false, "Print version and exit")
	helpFull    = flag.Bool("helpfull", false, "Show full help, including advanced flags")
)

type handler func(ctx context.Context) error

type command struct {
	name     string
	handler  handler
	short    string
	required []string
	optional []string
}

var commands = []command{
	{"query", query, `Query target capabilities`, []string{"port"}, []string{"iface", "param-base"}},
	{"erase", erase, `Erase a memory range, or the whole region with --mass`, []string{"port"}, []string{"iface", "addr", "length", "mass"}},
	{"flash", flash, `Program a file into memory and verify it`, []string{"port", "addr"}, []string{"iface"}},
	{"read", read, `Read memory out to a file`, []string{"port", "addr", "length"}, []string{"iface"}},
	{"crc", crcRange, `Report the CRC-32 of a memory range`, []string{"port", "addr", "length"}, []string{"iface"}},
}

func run() error {
	for _, c := range commands {
		if c.name == flag.Arg(0) {
			if err := checkFlags(c.required); err != nil {
				return errors.Trace(err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), *flags.Timeout)
			defer cancel()
			return errors.Trace(c.handler(ctx))
		}
	}
	usage()
	if flag.Arg(0) != "" {
		return errors.Errorf("unknown command %q", flag.Arg(0))
	}
	return nil
}

func main() {
	initFlags()
	flag.Parse()
	pflagenv.Parse(envPrefix)

	if *helpFull {
		unhideFlags()
		usage()
		return
	} else if *versionFlag {
		fmt.Printf(
			"%s\nVersion: %s\nBuild ID: %s\n",
			"The memprog command line tool", version.Version, version.BuildId,
		)
		return
	}

	if err := run(); err != nil {
		glog.Infof("Error: %+v", err)
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
