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
	"os"
	"path/filepath"
	"testing"

	"github.com/agentberlin/covenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneralData_ReviewWithTables(t *testing.T) {
	data := loadFixture(t, "review-with-tables.html").GeneralData()
	require.NotNil(t, data)

	assert.Equal(t, "Terror", data.Category)
	assert.Equal(t, "Madrid", data.Province)
	assert.Equal(t, "80 minutos", data.DurationText)
	require.NotNil(t, data.DurationMinutes)
	assert.Equal(t, 80, *data.DurationMinutes)
	assert.Equal(t, "2 - 6", data.PlayersText)
	assert.Equal(t, 2, *data.MinPlayers)
	assert.Equal(t, 6, *data.MaxPlayers)
	assert.Equal(t, "https://lastdoor.example/", data.WebLink)
	assert.Contains(t, data.Raw, "Datos generales del escape room")
	assert.Equal(t, &covenant.TableDebug{RowCount: 5, TablesTotal: 2, MatchedBy: "header"}, data.ExtractionDebug)
}

func TestScoring_ReviewWithTables(t *testing.T) {
	scoring := loadFixture(t, "review-with-tables.html").Scoring()
	require.NotNil(t, scoring)

	assert.Equal(t, covenant.ScoreKeys, scoring.Keys())

	terror, ok := scoring.Get(covenant.ScoreTerror)
	require.True(t, ok)
	assert.Equal(t, covenant.RatingNumber(4), terror.Value)
	assert.Equal(t, covenant.RatingNumber(5), terror.Max)
	assert.Equal(t, "Terror", terror.Label)

	fun, _ := scoring.Get(covenant.ScoreFun)
	assert.Equal(t, covenant.RatingNumber(4.5), fun.Value)
	assert.InDelta(t, 0.9, float64(fun.Ratio), 1e-9)

	immersion, _ := scoring.Get(covenant.ScoreImmersion)
	assert.Equal(t, covenant.RatingNumber(4.5), immersion.Value)

	global, _ := scoring.Get(covenant.ScoreGlobal)
	assert.Equal(t, covenant.RatingNumber(4.5), global.Value)

	master, _ := scoring.Get(covenant.ScoreGameMaster)
	assert.Equal(t, "G. Master", master.Label)
	assert.Equal(t, "header", scoring.ExtractionDebug.MatchedBy)
}

func TestEscapeRoomTables_PartialReviews(t *testing.T) {
	t.Run("OnlyGeneral", func(t *testing.T) {
		doc := loadFixture(t, "review-with-only-general.html")
		data := doc.GeneralData()
		require.NotNil(t, data)
		assert.Equal(t, "Aventura", data.Category)
		assert.Equal(t, 60, *data.DurationMinutes)
		assert.Equal(t, 4, *data.MinPlayers)
		assert.Equal(t, 4, *data.MaxPlayers)
		assert.Empty(t, data.WebLink)
		assert.Nil(t, doc.Scoring())
	})

	t.Run("OnlyScoring", func(t *testing.T) {
		doc := loadFixture(t, "review-with-only-scoring.html")
		assert.Nil(t, doc.GeneralData())
		scoring := doc.Scoring()
		require.NotNil(t, scoring)
		difficulty, ok := scoring.Get(covenant.ScoreDifficulty)
		require.True(t, ok)
		assert.Equal(t, covenant.RatingNumber(2), difficulty.Value)
		puzzles, _ := scoring.Get(covenant.ScorePuzzles)
		assert.Equal(t, covenant.RatingNumber(4), puzzles.Value)
		global, _ := scoring.Get(covenant.ScoreGlobal)
		assert.Equal(t, covenant.RatingNumber(3.5), global.Value)
	})

	t.Run("NonReview", func(t *testing.T) {
		data, err := New().ExtractPage(mustRead(t, "non-review.html"), reviewURL, testHosts(t))
		require.NoError(t, err)
		assert.Nil(t, data.EscapeRoomGeneralData)
		assert.Nil(t, data.EscapeRoomScoring)
		assert.False(t, data.IsEscapeRoomReview)
	})
}

func TestScoring_HeuristicFallback(t *testing.T) {
	html := `<html><body>
	<table><tr><td>Dificultad</td><td><i style="--rating:3"></i></td></tr>
	<tr><td>Miedo</td><td><i style="--rating:1.5"></i></td></tr>
	<tr><td>Ambientación</td><td><i style="--rating:4"></i></td></tr>
	<tr><td>Precio</td><td><i style="--rating:2"></i></td></tr></table>
	</body></html>`
	doc, err := Parse(html, reviewURL)
	require.NoError(t, err)

	scoring := doc.Scoring()
	require.NotNil(t, scoring)
	assert.Equal(t, "heuristic", scoring.ExtractionDebug.MatchedBy)
	assert.Equal(t, []string{covenant.ScoreDifficulty, covenant.ScoreTerror, covenant.ScoreImmersion}, scoring.Keys())
	terror, _ := scoring.Get(covenant.ScoreTerror)
	assert.InDelta(t, 0.3, float64(terror.Ratio), 1e-9)
}

func TestScoring_NoRatingsIsNil(t *testing.T) {
	doc, err := Parse(`<table><thead><tr><th>Puntuación escape room</th></tr></thead><tbody><tr><td>Global</td><td>sin nota</td></tr></tbody></table>`, reviewURL)
	require.NoError(t, err)
	assert.Nil(t, doc.Scoring())
}

func TestScoreKey(t *testing.T) {
	tests := map[string]string{
		"Dificultad":        covenant.ScoreDifficulty,
		"Terror":            covenant.ScoreTerror,
		"Nivel de miedo":    covenant.ScoreTerror,
		"Inmersión":         covenant.ScoreImmersion,
		"Diversión":         covenant.ScoreFun,
		"Enigmas / Puzzles": covenant.ScorePuzzles,
		"G. Master":         covenant.ScoreGameMaster,
		"Game Master":       covenant.ScoreGameMaster,
		"Global":            covenant.ScoreGlobal,
		"Precio":            "",
		"":                  "",
	}
	for label, want := range tests {
		assert.Equal(t, want, ScoreKey(label), label)
	}
}

func TestParseDurationMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"80 minutos", 80, true},
		{"75 min", 75, true},
		{"1 hora", 60, true},
		{"2 Horas", 120, true},
		{"aprox. 90", 90, true},
		{"sin datos", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseDurationMinutes(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParsePlayers(t *testing.T) {
	tests := []struct {
		in       string
		min, max int
		ok       bool
	}{
		{"2 - 6", 2, 6, true},
		{"2-5 jugadores", 2, 5, true},
		{"4 jugadores", 4, 4, true},
		{"consultar", 0, 0, false},
	}
	for _, tt := range tests {
		min, max, ok := ParsePlayers(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.min, min, tt.in)
		assert.Equal(t, tt.max, max, tt.in)
	}
}

func mustRead(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}
