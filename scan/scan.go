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

// Package scan implements the scan resolver: expand a `scan` element
// into an ordered list of materialised `netcdf` members by walking a
// directory, filtering by suffix/regexp/age, and (optionally) parsing a
// timestamp out of each filename.
package scan

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ncmlagg/aggserver/ncmlerrors"
)

// Options mirrors the attributes of a `scan` element .
type Options struct {
	Location       string
	Suffix         string
	RegExp         string
	Subdirs        bool // default true
	OlderThan      string
	DateFormatMark string
	CatalogRoot    string

	AllowSymlinksOutsideRoot bool
	AllowParentTraversal     bool
}

// Member is one materialised `netcdf` child produced by a scan, its
// location set to the matched file's full path.
type Member struct {
	Location   string
	CoordValue string // set from the parsed timestamp, ISO-8601, when DateFormatMark is set
}

// Resolve expands opts into its ordered member list.
func Resolve(opts Options) ([]Member, error) {
	if strings.Contains(opts.Location, "../") && !opts.AllowParentTraversal {
		return nil, ncmlerrors.ErrForbidden.New("scan location contains parent traversal: " + opts.Location)
	}

	var mark *dateFormatMark
	if opts.DateFormatMark != "" {
		m, err := parseDateFormatMark(opts.DateFormatMark)
		if err != nil {
			return nil, err
		}
		mark = m
	}

	var re *regexp.Regexp
	if opts.RegExp != "" {
		compiled, err := regexp.Compile(opts.RegExp)
		if err != nil {
			return nil, ncmlerrors.ErrParse.New("scan regExp: " + err.Error())
		}
		re = compiled
	}

	var paths []string
	err := filepath.WalkDir(opts.Location, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == opts.Location {
			return nil
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !opts.subdirsOrDefault() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 && !opts.AllowSymlinksOutsideRoot {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				return ncmlerrors.ErrInternal.New("scan: symlink loop or dangling link at " + path)
			}
			if opts.CatalogRoot != "" && !strings.HasPrefix(resolved, opts.CatalogRoot) {
				return nil
			}
		}

		if opts.Suffix != "" && !strings.HasSuffix(base, opts.Suffix) {
			return nil
		}
		if re != nil && !re.MatchString(base) {
			return nil
		}
		if opts.OlderThan != "" {
			d, err := parseOlderThan(opts.OlderThan)
			if err != nil {
				return err
			}
			if !info.ModTime().Before(time.Now().Add(-d)) {
				return nil
			}
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)

	members := make([]Member, len(paths))
	for i, path := range paths {
		m := Member{Location: path}
		if mark != nil {
			ts, err := mark.Parse(filepath.Base(path))
			if err != nil {
				return nil, err
			}
			m.CoordValue = ts.UTC().Format("2006-01-02T15:04:05Z")
		}
		members[i] = m
	}
	return members, nil
}

func (o Options) subdirsOrDefault() bool {
	return o.Subdirs
}

// dateFormatMark implements the "<prefix>#<sdfPattern>" grammar: the
// '#' position fixes how many leading
// basename characters must match prefix literally; the next
// len(sdfPattern) characters are parsed by a Go reference-time layout
// derived from that pattern.
type dateFormatMark struct {
	prefix string
	layout string
}

func parseDateFormatMark(raw string) (*dateFormatMark, error) {
	idx := strings.IndexByte(raw, '#')
	if idx < 0 {
		return nil, ncmlerrors.ErrParse.New("dateFormatMark missing '#': " + raw)
	}
	return &dateFormatMark{prefix: raw[:idx], layout: sdfToGoLayout(raw[idx+1:])}, nil
}

func (m *dateFormatMark) Parse(basename string) (time.Time, error) {
	if !strings.HasPrefix(basename, m.prefix) {
		return time.Time{}, ncmlerrors.ErrParse.New("dateFormatMark prefix mismatch on " + basename)
	}
	rest := basename[len(m.prefix):]
	width := len(m.layout)
	if len(rest) < width {
		return time.Time{}, ncmlerrors.ErrParse.New("dateFormatMark: " + basename + " too short for pattern")
	}
	ts, err := time.Parse(m.layout, rest[:width])
	if err != nil {
		return time.Time{}, ncmlerrors.ErrParse.New("dateFormatMark: " + err.Error())
	}
	return ts, nil
}

// sdfToGoLayout maps the small set of java.text.SimpleDateFormat tokens
// the original scan resolver accepted to the equivalent Go reference-time
// layout of the same rune width, so the character-counting in Parse stays
// correct regardless of which token set a document uses.
func sdfToGoLayout(pattern string) string {
	r := strings.NewReplacer(
		"yyyy", "2006",
		"MM", "01",
		"dd", "02",
		"HH", "15",
		"mm", "04",
		"ss", "05",
	)
	return r.Replace(pattern)
}

// parseOlderThan parses  "<number> <unit>" duration grammar,
// where unit is one of seconds, minutes, hours, or days (optionally
// pluralised).
func parseOlderThan(raw string) (time.Duration, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return 0, ncmlerrors.ErrParse.New("olderThan must be \"<number> <unit>\": " + raw)
	}
	n, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, ncmlerrors.ErrParse.New("olderThan: " + err.Error())
	}
	unit := strings.TrimSuffix(strings.ToLower(fields[1]), "s")
	var base time.Duration
	switch unit {
	case "second":
		base = time.Second
	case "minute":
		base = time.Minute
	case "hour":
		base = time.Hour
	case "day":
		base = 24 * time.Hour
	default:
		return 0, ncmlerrors.ErrParse.New("olderThan: unknown unit " + fields[1])
	}
	return time.Duration(n * float64(base)), nil
}
