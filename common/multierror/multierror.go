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

// Package multierror accumulates several errors behind a single error
// value, e.g. when validating a set of flags where every problem should be
// reported at once.
package multierror

import (
	"fmt"
	"strings"
)

// Error bundles multiple errors and makes them obey the error interface.
type Error struct {
	errs []error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d error(s) occurred:", len(e.errs))
	for _, err := range e.errs {
		fmt.Fprintf(&b, "\n%s", err)
	}
	return b.String()
}

// Errors returns the individual errors.
func (e *Error) Errors() []error {
	return e.errs
}

// Append adds errs to err, which may be nil, an *Error, or any other error
// (which becomes the first entry of a new bundle).
func Append(err error, errs ...error) error {
	switch err := err.(type) {
	case nil:
		return &Error{errs: errs}
	case *Error:
		err.errs = append(err.errs, errs...)
		return err
	default:
		return &Error{errs: append([]error{err}, errs...)}
	}
}
