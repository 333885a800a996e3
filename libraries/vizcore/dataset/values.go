// Copyright 2020 Vizier DB.
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

package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// CastValue attempts to convert a raw string cell into an int or a float. If both conversions
// fail the string is returned as is.
func CastValue(value string) interface{} {
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	return value
}

// EncodeValue renders a cell value as a string for delimited output. Nil cells render as the
// empty string.
func EncodeValue(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func numericValue(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}

// valueRank orders values of differing kinds: nulls sort below booleans, booleans below
// numbers, numbers below strings.
func valueRank(value interface{}) int {
	if value == nil {
		return 0
	}

	switch value.(type) {
	case bool:
		return 1
	case int, int64, float32, float64:
		return 2
	default:
		return 3
	}
}

// CompareValues imposes a total order on cell values for sorting. Values of the same kind compare
// naturally; values of differing kinds compare by kind rank (null < bool < number < string).
// Returns a negative number, zero, or a positive number as a sorts before, equal to, or after b.
func CompareValues(a, b interface{}) int {
	ra, rb := valueRank(a), valueRank(b)

	if ra != rb {
		return ra - rb
	}

	switch ra {
	case 0:
		return 0
	case 1:
		av, bv := a.(bool), b.(bool)
		if av == bv {
			return 0
		} else if !av {
			return -1
		}
		return 1
	case 2:
		av, _ := numericValue(a)
		bv, _ := numericValue(b)
		if av < bv {
			return -1
		} else if av > bv {
			return 1
		}
		return 0
	default:
		return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
	}
}
