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

package ncmlerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLine(t *testing.T) {
	base := ErrParse.New("unknown attribute isUnlimited")
	wrapped := WithLine(base, "agg.ncml", 42)
	require.Error(t, wrapped)
	assert.True(t, ErrParse.Is(wrapped))
	assert.Contains(t, wrapped.Error(), "agg.ncml:42")
}

func TestWithLocation(t *testing.T) {
	base := ErrAggregation.New("missing variable temp")
	wrapped := WithLocation(base, "/data/m0.nc")
	require.Error(t, wrapped)
	assert.True(t, ErrAggregation.Is(wrapped))
	assert.Contains(t, wrapped.Error(), `member "/data/m0.nc"`)
}

func TestNilIsPassthrough(t *testing.T) {
	assert.Nil(t, WithLine(nil, "x", 1))
	assert.Nil(t, WithLocation(nil, "x"))
}

func TestKindsAreDistinct(t *testing.T) {
	err := ErrNotFound.New("/data/m0.nc")
	assert.True(t, ErrNotFound.Is(err))
	assert.False(t, ErrCache.Is(err))
	assert.False(t, ErrAggregation.Is(err))
}
