/** Copyright 2020-2023 Alibaba Group Holding Limited.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package common

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	KOK               = 0
	KInvalid          = 1
	KKeyError         = 2
	KTypeError        = 3
	KIOError          = 4
	KEndOfFile        = 5
	KNotImplemented   = 6
	KAssertionFailed  = 7
	KObjectExists     = 11
	KObjectNotExists  = 12
	KObjectStale      = 13
	KWireFatalError   = 21
	KConnectionFailed = 33
	KConnectionError  = 34
	KNotEnoughMemory  = 41
	KUnKnownError     = 255
)

var ErrCodes map[int]string

func init() {
	ErrCodes = make(map[int]string)

	ErrCodes[0] = "OK"
	ErrCodes[1] = "Invalid"
	ErrCodes[2] = "KeyError"
	ErrCodes[3] = "TypeError"
	ErrCodes[4] = "IOError"
	ErrCodes[5] = "EndOfFile"
	ErrCodes[6] = "NotImplemented"
	ErrCodes[7] = "AssertionFailed"
	ErrCodes[11] = "ObjectExists"
	ErrCodes[12] = "ObjectNotExists"
	ErrCodes[13] = "ObjectStale"
	ErrCodes[21] = "WireFatalError"
	ErrCodes[33] = "ConnectionFailed"
	ErrCodes[34] = "ConnectionError"
	ErrCodes[41] = "NotEnoughMemory"
	ErrCodes[255] = "UnKnownError"
}

type Status struct {
	Code    int
	Message string
}

func (r *Status) Error() string {
	m := "UnknownError"
	if k, ok := ErrCodes[r.Code]; ok {
		m = k
	}
	return fmt.Sprintf("code: %v, message: %v: %+v", r.Code, m, r.Message)
}

func (r *Status) Wrap() error {
	return errors.WithStack(r)
}

func Error(code int, message string) error {
	err := &Status{code, message}
	return err.Wrap()
}

func Errorf(code int, format string, args ...any) error {
	return Error(code, fmt.Sprintf(format, args...))
}

// FatalError reports a framing violation on the wire. Any such error means the
// message cannot be trusted and the stream must be torn down.
func FatalError(format string, args ...any) error {
	return Error(KWireFatalError, fmt.Sprintf(format, args...))
}

// StatusCode extracts the status code carried by err, KOK for nil and
// KUnKnownError for errors that didn't originate from a Status.
func StatusCode(err error) int {
	if err == nil {
		return KOK
	}
	var status *Status
	if errors.As(err, &status) {
		return status.Code
	}
	return KUnKnownError
}

func IsFatal(err error) bool {
	return StatusCode(err) == KWireFatalError
}

func NotConnected() error {
	return Error(KAssertionFailed, "client not connected")
}
