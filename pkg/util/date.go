// Copyright 2025 The imgdock Authors
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

package util

import (
	"fmt"
	"time"
)

// NowParts returns the current UTC calendar day as a YYYYMMDD partition
// key together with the epoch timestamp in seconds.
func NowParts() (string, int64) {
	return TimeParts(time.Now())
}

// TimeParts converts an instant to its YYYYMMDD UTC partition and epoch
// seconds using civil-from-days arithmetic on the proleptic Gregorian
// calendar. No lookup tables, valid for any day count in a 400-year era.
func TimeParts(t time.Time) (string, int64) {
	secs := t.Unix()

	days := secs / 86400
	z := days + 719468
	era := z / 146097
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d := doy - (153*mp+2)/5 + 1
	m := mp + 3
	if mp >= 10 {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}

	return fmt.Sprintf("%04d%02d%02d", y, m, d), secs
}
