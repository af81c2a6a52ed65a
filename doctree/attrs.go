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

package doctree

import "github.com/ncmlagg/aggserver/ncmlerrors"

// validateAttrs implements  "validates its attributes against an
// enumerated set; unknown attributes raise a parse error".
func validateAttrs(tag string, attrs map[string]string, allowed ...string) error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}
	for k := range attrs {
		if !allowedSet[k] {
			return ncmlerrors.ErrParse.New(tag + ": unknown attribute " + k)
		}
	}
	return nil
}
