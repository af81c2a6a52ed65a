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

import "github.com/ncmlagg/aggserver/planner"

// aggregationFrame accumulates an in-progress `aggregation` element's
// plan : its type, joined dimension, member list (explicit
// `netcdf` children and scan results, in document order), and the
// aggregation-variable names declared as direct `variable` children.
type aggregationFrame struct {
	plan     planner.Plan
	pl       planner.Planner
	scanSeen bool
}

var allowedAggregationTypes = map[string]planner.Type{
	"union":                             planner.Union,
	"joinNew":                           planner.JoinNew,
	"joinExisting":                      planner.JoinExisting,
	"forecastModelRunCollection":        planner.ForecastModelRunCollection,
	"forecastModelSingleRunCollection":  planner.ForecastModelSingleRunCollection,
}
