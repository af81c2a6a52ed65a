// Copyright 2024 The NCML Aggregation Authors.
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

// Package coord implements the coordinate synthesiser : given
// a joinNew aggregation's declared dimension and its ordered member list,
// produce the one-dimensional coordinate array for that dimension.
package coord

import (
	"fmt"
	"strconv"

	"github.com/ncmlagg/aggserver/cdm"
)

// Member is the minimal per-member information the synthesiser needs: its
// location string and, if present, its declared coordValue.
type Member struct {
	Location   string
	CoordValue string
	// FormattedTimestamp is the ISO-8601 rendering produced by the scan
	// resolver when a dateFormatMark was in effect; empty otherwise.
	FormattedTimestamp string
}

// Result is a synthesised coordinate array plus the attribute the planner
// should additionally set on it, if any.
type Result struct {
	Array     *cdm.MemArray
	AxisAttr  string
	AxisValue string
}

// Synthesize implements the four-rule coordinate priority ladder.
func Synthesize(dimName string, members []Member) Result {
	if allNumericCoordValues(members) {
		values := make([]interface{}, len(members))
		for i, m := range members {
			f, _ := strconv.ParseFloat(m.CoordValue, 64)
			values[i] = f
		}
		arr := cdm.NewMemArray(dimName, cdm.Float64, []cdm.Dimension{{Name: dimName, Size: len(members), IsShared: true}}, values)
		return Result{Array: arr}
	}

	if allNonEmptyCoordValues(members) {
		values := make([]interface{}, len(members))
		for i, m := range members {
			values[i] = m.CoordValue
		}
		arr := cdm.NewMemArray(dimName, cdm.String, []cdm.Dimension{{Name: dimName, Size: len(members), IsShared: true}}, values)
		return Result{Array: arr}
	}

	if allHaveTimestamps(members) {
		values := make([]interface{}, len(members))
		for i, m := range members {
			values[i] = m.FormattedTimestamp
		}
		arr := cdm.NewMemArray(dimName, cdm.String, []cdm.Dimension{{Name: dimName, Size: len(members), IsShared: true}}, values)
		return Result{Array: arr, AxisAttr: "_CoordinateAxisType", AxisValue: "Time"}
	}

	values := make([]interface{}, len(members))
	for i, m := range members {
		if m.Location == "" {
			values[i] = fmt.Sprintf("Virtual_Dataset_%d", i)
		} else {
			values[i] = m.Location
		}
	}
	arr := cdm.NewMemArray(dimName, cdm.String, []cdm.Dimension{{Name: dimName, Size: len(members), IsShared: true}}, values)
	return Result{Array: arr}
}

func allNumericCoordValues(members []Member) bool {
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if m.CoordValue == "" {
			return false
		}
		if _, err := strconv.ParseFloat(m.CoordValue, 64); err != nil {
			return false
		}
	}
	return true
}

func allNonEmptyCoordValues(members []Member) bool {
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if m.CoordValue == "" {
			return false
		}
	}
	return true
}

func allHaveTimestamps(members []Member) bool {
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if m.FormattedTimestamp == "" {
			return false
		}
	}
	return true
}
