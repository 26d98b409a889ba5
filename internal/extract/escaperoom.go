// Copyright 2025 Agentic World, LLC (Sherin Thomas)
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

package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/agentberlin/covenant"
	"github.com/agentberlin/covenant/internal/textnorm"
)

// Reviews carry a star widget per rating row: an element whose inline style
// sets --rating to a value out of ratingMax.
const ratingMax = 5.0

var (
	hoursPattern      = regexp.MustCompile(`(\d+)\s*(hora|horas)`)
	minutesPattern    = regexp.MustCompile(`(\d+)\s*(minuto|minutos|min)`)
	bareNumberPattern = regexp.MustCompile(`(?:^|\D)(\d+)(?:\D|$)`)
	playerRange       = regexp.MustCompile(`(\d+)\s*-\s*(\d+)`)
	singleNumber      = regexp.MustCompile(`(\d+)`)
	ratingPattern     = regexp.MustCompile(`--rating:\s*([0-9]+(?:[.,][0-9]+)?)`)
	nonAlnum          = regexp.MustCompile(`[^a-z0-9]+`)
)

// scoreAliases maps compacted row labels to rating keys. Matching tries the
// exact label first, then substring containment in this order.
var scoreAliases = []struct {
	alias string
	key   string
}{
	{"dificultad", covenant.ScoreDifficulty},
	{"terror", covenant.ScoreTerror},
	{"miedo", covenant.ScoreTerror},
	{"inmersion", covenant.ScoreImmersion},
	{"ambientacion", covenant.ScoreImmersion},
	{"diversion", covenant.ScoreFun},
	{"puzzles", covenant.ScorePuzzles},
	{"enigmas", covenant.ScorePuzzles},
	{"pruebas", covenant.ScorePuzzles},
	{"gmaster", covenant.ScoreGameMaster},
	{"gamemaster", covenant.ScoreGameMaster},
	{"master", covenant.ScoreGameMaster},
	{"global", covenant.ScoreGlobal},
}

// ParseDurationMinutes reads a duration such as "80 minutos" or "1 hora".
// Hours win over minutes; a bare number is taken as minutes.
func ParseDurationMinutes(text string) (int, bool) {
	lower := strings.ToLower(text)
	if m := hoursPattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 60, true
	}
	if m := minutesPattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if m := bareNumberPattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	return 0, false
}

// ParsePlayers reads "2 - 6" style ranges. A single number is both bounds.
func ParsePlayers(text string) (min, max int, ok bool) {
	if m := playerRange.FindStringSubmatch(text); m != nil {
		min, _ = strconv.Atoi(m[1])
		max, _ = strconv.Atoi(m[2])
		return min, max, true
	}
	if m := singleNumber.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, n, true
	}
	return 0, 0, false
}

func tableRows(table *goquery.Selection) *goquery.Selection {
	if rows := table.Find("tbody tr"); rows.Length() > 0 {
		return rows
	}
	return table.Find("tr")
}

func tableHeader(table *goquery.Selection) string {
	header := table.Find("thead th")
	if header.Length() == 0 {
		header = table.Find("tr").First().Find("th")
	}
	return textnorm.ForComparison(header.Text())
}

// generalTable finds the "datos generales" table, preferring the site's
// scoring table class and falling back to every table.
func (d *Document) generalTable() *goquery.Selection {
	for _, selector := range []string{"table.tabla-scoring-datos-principales", "table"} {
		var found *goquery.Selection
		d.Find(selector).EachWithBreak(func(_ int, t *goquery.Selection) bool {
			header := tableHeader(t)
			if strings.Contains(header, "datos generales") && strings.Contains(header, "escape room") {
				found = t
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// GeneralData reads category, province, duration, players and website from
// the "datos generales" table. Returns nil unless at least one of them is
// present.
func (d *Document) GeneralData() *covenant.EscapeRoomGeneralData {
	table := d.generalTable()
	if table == nil {
		return nil
	}
	rows := tableRows(table)
	data := &covenant.EscapeRoomGeneralData{
		Raw: outerHTML(table),
		ExtractionDebug: &covenant.TableDebug{
			RowCount:    rows.Length(),
			TablesTotal: d.Find("table").Length(),
			MatchedBy:   "header",
		},
	}

	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := textnorm.ForComparison(cells.Eq(0).Text())
		valueCell := cells.Eq(1)
		value := text(valueCell)

		switch {
		case strings.Contains(label, "categoria"):
			data.Category = value
		case strings.Contains(label, "provincia"):
			data.Province = value
		case strings.Contains(label, "duracion"):
			data.DurationText = value
			if minutes, ok := ParseDurationMinutes(value); ok {
				data.DurationMinutes = &minutes
			}
		case strings.Contains(label, "jugadores"):
			data.PlayersText = value
			if min, max, ok := ParsePlayers(value); ok {
				data.MinPlayers = &min
				data.MaxPlayers = &max
			}
		case strings.HasPrefix(label, "web"):
			data.WebLink = d.Absolute(attr(valueCell.Find("a[href]").First(), "href"))
		}
	})

	if data.Category == "" && data.Province == "" && data.DurationText == "" &&
		data.PlayersText == "" && data.WebLink == "" {
		return nil
	}
	return data
}

// scoringTable finds the rating table by its "puntuacion escape room"
// header, or failing that the first other table holding three or more star
// widgets.
func (d *Document) scoringTable() (*goquery.Selection, string) {
	tables := d.Find("table")
	var found *goquery.Selection
	tables.EachWithBreak(func(_ int, t *goquery.Selection) bool {
		header := tableHeader(t)
		if strings.Contains(header, "puntuacion") && strings.Contains(header, "escape room") {
			found = t
			return false
		}
		return true
	})
	if found != nil {
		return found, "header"
	}

	general := d.generalTable()
	tables.EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if general != nil && t.Get(0) == general.Get(0) {
			return true
		}
		if t.Find(`[style*="--rating"]`).Length() >= 3 {
			found = t
			return false
		}
		return true
	})
	if found != nil {
		return found, "heuristic"
	}
	return nil, ""
}

// ScoreKey maps a rating row label to its category key, or "" when the
// label names no known category.
func ScoreKey(label string) string {
	compact := nonAlnum.ReplaceAllString(textnorm.ForComparison(label), "")
	if compact == "" {
		return ""
	}
	for _, a := range scoreAliases {
		if compact == a.alias {
			return a.key
		}
	}
	for _, a := range scoreAliases {
		if strings.Contains(compact, a.alias) {
			return a.key
		}
	}
	return ""
}

func rating(row *goquery.Selection) (float64, bool) {
	var value float64
	var ok bool
	row.Find(`[style*="--rating"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		m := ratingPattern.FindStringSubmatch(attr(s, "style"))
		if m == nil {
			return true
		}
		value, ok = covenant.ParseRatingNumber(m[1])
		return !ok
	})
	return value, ok
}

// Scoring reads the star ratings of the review table. Each row's first cell
// names the category; the rating is out of 5. Returns nil when no row
// yields a value.
func (d *Document) Scoring() *covenant.EscapeRoomScoring {
	table, matchedBy := d.scoringTable()
	if table == nil {
		return nil
	}
	rows := tableRows(table)
	scoring := &covenant.EscapeRoomScoring{
		Categories: make(map[string]covenant.ScoreValue),
		RawHTML:    outerHTML(table),
		ExtractionDebug: &covenant.TableDebug{
			RowCount:    rows.Length(),
			TablesTotal: d.Find("table").Length(),
			MatchedBy:   matchedBy,
		},
	}

	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() == 0 {
			return
		}
		label := text(cells.Eq(0))
		key := ScoreKey(label)
		if key == "" {
			return
		}
		if _, dup := scoring.Categories[key]; dup {
			return
		}
		value, ok := rating(row)
		if !ok {
			return
		}
		scoring.Categories[key] = covenant.ScoreValue{
			Value: covenant.RatingNumber(value),
			Max:   ratingMax,
			Ratio: covenant.RatingNumber(value / ratingMax),
			Label: label,
		}
	})

	if len(scoring.Categories) == 0 {
		return nil
	}
	return scoring
}
