package stats

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"boxout/bdl"
	"boxout/utils"
)

// Metrics are the categories growth is computed for. Turnovers, minutes and
// games played show up in the per-season averages but not here.
var Metrics = []string{"pts", "reb", "ast", "stl", "blk", "fg_pct", "fg3_pct", "ft_pct"}

// Source is the narrow slice of the upstream client the comparator needs.
type Source interface {
	Player(id int) (*bdl.Player, error)
	PlayerGameStats(id int, season *int) ([]bdl.GameStat, error)
	PlayerSeasons(id int) ([]int, error)
}

// SeasonAverages holds one season's per-game means. GamesPlayed counts every
// record the upstream returned for the season, even the ones a parse failure
// kept out of the averaging denominator.
type SeasonAverages struct {
	Pts         float64 `json:"pts"`
	Reb         float64 `json:"reb"`
	Ast         float64 `json:"ast"`
	Stl         float64 `json:"stl"`
	Blk         float64 `json:"blk"`
	Turnover    float64 `json:"turnover"`
	FgPct       float64 `json:"fg_pct"`
	Fg3Pct      float64 `json:"fg3_pct"`
	FtPct       float64 `json:"ft_pct"`
	Min         float64 `json:"min"`
	GamesPlayed int     `json:"games_played"`
}

func (s *SeasonAverages) metric(name string) float64 {
	switch name {
	case "pts":
		return s.Pts
	case "reb":
		return s.Reb
	case "ast":
		return s.Ast
	case "stl":
		return s.Stl
	case "blk":
		return s.Blk
	case "turnover":
		return s.Turnover
	case "fg_pct":
		return s.FgPct
	case "fg3_pct":
		return s.Fg3Pct
	case "ft_pct":
		return s.FtPct
	case "min":
		return s.Min
	}
	return 0
}

// toFloat coerces one raw box score value. Absent fields count as zero; a
// present value that is neither numeric nor a numeric string fails.
func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case nil:
		return 0, true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// parseMinutes decodes the minutes field, which arrives either as "MM:SS" or
// as a bare decimal string. An empty field counts as zero minutes.
func parseMinutes(s string) (float64, bool) {
	if s == "" {
		return 0, true
	}
	if strings.Contains(s, ":") {
		parts := strings.SplitN(s, ":", 2)
		mins, err1 := strconv.Atoi(parts[0])
		secs, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return 0, false
		}
		return float64(mins) + float64(secs)/60, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Aggregate folds one season's game records into per-game averages. A record
// contributes to the averages only if every field parses; it counts toward
// GamesPlayed either way. Returns nil when there are no records or no record
// parsed cleanly.
func Aggregate(records []bdl.GameStat) *SeasonAverages {
	if len(records) == 0 {
		return nil
	}

	totals := SeasonAverages{}
	valid := 0
	for _, r := range records {
		mins, ok := parseMinutes(r.Min)
		if !ok {
			continue
		}
		fields := [9]any{r.Pts, r.Reb, r.Ast, r.Stl, r.Blk, r.Turnover, r.FgPct, r.Fg3Pct, r.FtPct}
		vals := [9]float64{}
		ok = true
		for i, f := range fields {
			v, fieldOK := toFloat(f)
			if !fieldOK {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}

		totals.Pts += vals[0]
		totals.Reb += vals[1]
		totals.Ast += vals[2]
		totals.Stl += vals[3]
		totals.Blk += vals[4]
		totals.Turnover += vals[5]
		totals.FgPct += vals[6]
		totals.Fg3Pct += vals[7]
		totals.FtPct += vals[8]
		totals.Min += mins
		valid++
	}
	if valid == 0 {
		return nil
	}

	n := float64(valid)
	return &SeasonAverages{
		Pts:      totals.Pts / n,
		Reb:      totals.Reb / n,
		Ast:      totals.Ast / n,
		Stl:      totals.Stl / n,
		Blk:      totals.Blk / n,
		Turnover: totals.Turnover / n,
		FgPct:    totals.FgPct / n,
		Fg3Pct:   totals.Fg3Pct / n,
		FtPct:    totals.FtPct / n,
		Min:      totals.Min / n,
		// Total records, not the averaging denominator. The upstream source
		// reported it this way and downstream consumers expect it.
		GamesPlayed: len(records),
	}
}

// Growth computes the percentage change per metric between two season
// summaries. A metric whose prior value is zero gets a nil entry, there is
// no sane baseline to divide by.
func Growth(prev, curr *SeasonAverages, metrics []string) map[string]*float64 {
	growth := make(map[string]*float64, len(metrics))
	for _, m := range metrics {
		pv := prev.metric(m)
		if pv == 0 {
			growth[m] = nil
			continue
		}
		pct := math.Round(((curr.metric(m)-pv)/math.Abs(pv))*1000) / 10
		growth[m] = &pct
	}
	return growth
}

type PlayerSummary struct {
	ID   int     `json:"id"`
	Name string  `json:"name"`
	Team *string `json:"team"`
}

// Comparison is the full result of comparing one player across seasons.
// SeasonAverages has an entry per requested season, nil when the season had
// no usable records. Growth is keyed "{prev}-{curr}" for pairs adjacent in
// the requested list, and a pair is omitted entirely when either side has
// nil averages.
type Comparison struct {
	Player         PlayerSummary                  `json:"player"`
	Seasons        []int                          `json:"seasons"`
	SeasonAverages map[string]*SeasonAverages     `json:"season_averages"`
	Growth         map[string]map[string]*float64 `json:"growth"`
	Metrics        []string                       `json:"metrics"`
}

type Comparator struct {
	src Source
}

func NewComparator(src Source) *Comparator {
	return &Comparator{src: src}
}

// Compare drives the whole season comparison: validate, resolve the player,
// aggregate each requested season in order, then compute growth for adjacent
// pairs. Any upstream failure aborts the comparison, there is no partial
// result.
func (c *Comparator) Compare(playerID int, seasons []int) (*Comparison, error) {
	if playerID <= 0 {
		return nil, fmt.Errorf("%w: player id must be a positive integer, got %d", bdl.ErrInvalidParameter, playerID)
	}
	if len(seasons) == 0 {
		return nil, fmt.Errorf("%w: at least one season must be provided", bdl.ErrInvalidParameter)
	}
	for _, s := range seasons {
		if utils.IsInvalidSeason(s) {
			return nil, fmt.Errorf("%w: season %d is out of range", bdl.ErrInvalidParameter, s)
		}
	}

	player, err := c.src.Player(playerID)
	if err != nil {
		return nil, err
	}

	bySeason := make(map[int]*SeasonAverages, len(seasons))
	averages := make(map[string]*SeasonAverages, len(seasons))
	for _, s := range seasons {
		season := s
		records, err := c.src.PlayerGameStats(playerID, &season)
		if err != nil {
			return nil, err
		}
		avg := Aggregate(records)
		bySeason[s] = avg
		averages[strconv.Itoa(s)] = avg
	}

	growth := map[string]map[string]*float64{}
	for i := 1; i < len(seasons); i++ {
		prev, curr := bySeason[seasons[i-1]], bySeason[seasons[i]]
		if prev == nil || curr == nil {
			continue
		}
		growth[fmt.Sprintf("%d-%d", seasons[i-1], seasons[i])] = Growth(prev, curr, Metrics)
	}

	summary := PlayerSummary{ID: player.ID, Name: player.FullName()}
	if player.Team != nil {
		team := player.Team.FullName
		summary.Team = &team
	}

	return &Comparison{
		Player:         summary,
		Seasons:        seasons,
		SeasonAverages: averages,
		Growth:         growth,
		Metrics:        Metrics,
	}, nil
}
