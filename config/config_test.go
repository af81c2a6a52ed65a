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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresFields(t *testing.T) {
	_, err := CacheConfig{}.Validate()
	require.Error(t, err)

	_, err = CacheConfig{CacheDirectory: "/tmp/cache"}.Validate()
	require.Error(t, err)

	_, err = CacheConfig{CacheDirectory: "/tmp/cache", CachePrefix: "Agg"}.Validate()
	require.Error(t, err)

	c, err := CacheConfig{CacheDirectory: "/tmp/cache", CachePrefix: "Agg", CacheSizeMB: 10}.Validate()
	require.NoError(t, err)
	assert.Equal(t, "agg", c.CachePrefix)
	assert.Equal(t, int64(10*1024*1024), c.MaxBytes())
}
