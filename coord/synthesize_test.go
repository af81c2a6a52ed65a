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

package coord

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncmlagg/aggserver/cdm"
)

func readAll(t *testing.T, arr *cdm.MemArray) []interface{} {
	t.Helper()
	buf, err := arr.Read(context.Background(), cdm.Constraints{cdm.FullConstraint(arr.TotalLen())})
	require.NoError(t, err)
	return buf.Values
}

func TestSynthesizeNumericCoordValues(t *testing.T) {
	res := Synthesize("time", []Member{{CoordValue: "1.5"}, {CoordValue: "2.5"}})
	assert.Equal(t, []interface{}{1.5, 2.5}, readAll(t, res.Array))
	assert.Empty(t, res.AxisAttr)
}

func TestSynthesizeStringCoordValues(t *testing.T) {
	res := Synthesize("time", []Member{{CoordValue: "jan"}, {CoordValue: "feb"}})
	assert.Equal(t, []interface{}{"jan", "feb"}, readAll(t, res.Array))
}

func TestSynthesizeTimestampsSetsAxisAttribute(t *testing.T) {
	res := Synthesize("time", []Member{
		{Location: "m0.nc", FormattedTimestamp: "2024-01-01T00:00:00Z"},
		{Location: "m1.nc", FormattedTimestamp: "2024-01-02T00:00:00Z"},
	})
	assert.Equal(t, "_CoordinateAxisType", res.AxisAttr)
	assert.Equal(t, "Time", res.AxisValue)
}

func TestSynthesizeFallsBackToLocationOrVirtualName(t *testing.T) {
	res := Synthesize("run", []Member{{Location: "m0.nc"}, {Location: ""}})
	assert.Equal(t, []interface{}{"m0.nc", "Virtual_Dataset_1"}, readAll(t, res.Array))
}
