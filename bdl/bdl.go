package bdl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"boxout/cache"
	"boxout/utils"
)

const defaultBaseURL = "https://api.balldontlie.io/v1"

// Error kinds surfaced by the client. main.go maps these to HTTP status
// codes once, at the boundary; anything unlisted is a generic upstream error.
var ErrInvalidParameter = errors.New("invalid parameter")
var ErrPlayerNotFound = errors.New("player not found")
var ErrApiKeyInvalid = errors.New("invalid or missing api key")
var ErrRateLimited = errors.New("rate limit exceeded")

type Team struct {
	ID           int    `json:"id"`
	Conference   string `json:"conference"`
	Division     string `json:"division"`
	City         string `json:"city"`
	Name         string `json:"name"`
	FullName     string `json:"full_name"`
	Abbreviation string `json:"abbreviation"`
}

type Player struct {
	ID           int    `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Position     string `json:"position"`
	Height       string `json:"height"`
	Weight       string `json:"weight"`
	JerseyNumber string `json:"jersey_number"`
	College      string `json:"college"`
	Country      string `json:"country"`
	Team         *Team  `json:"team"`
}

// FullName is derived on demand so it can never drift from its parts.
func (p Player) FullName() string {
	return p.FirstName + " " + p.LastName
}

type Game struct {
	ID          int    `json:"id"`
	Date        string `json:"date"`
	Season      int    `json:"season"`
	Status      string `json:"status"`
	HomeTeam    Team   `json:"home_team"`
	VisitorTeam Team   `json:"visitor_team"`
}

// GameStat is one game's raw line for one player. The box score fields stay
// untyped because the upstream feed occasionally carries nulls or strings
// where numbers belong; the aggregation layer decides what parses.
type GameStat struct {
	Pts      any      `json:"pts"`
	Reb      any      `json:"reb"`
	Ast      any      `json:"ast"`
	Stl      any      `json:"stl"`
	Blk      any      `json:"blk"`
	Turnover any      `json:"turnover"`
	FgPct    any      `json:"fg_pct"`
	Fg3Pct   any      `json:"fg3_pct"`
	FtPct    any      `json:"ft_pct"`
	Min      string   `json:"min"`
	Game     StatGame `json:"game"`
}

type StatGame struct {
	ID     int    `json:"id"`
	Date   string `json:"date"`
	Season int    `json:"season"`
}

type playersResp struct {
	Data []Player `json:"data"`
}

type playerResp struct {
	Data Player `json:"data"`
}

type statsResp struct {
	Data []GameStat `json:"data"`
}

type gamesResp struct {
	Data []Game `json:"data"`
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cache   *cache.Cache
}

// NewClient builds a BallDontLie client. responses is optional; when present
// it is consulted before the network and populated after successful requests.
func NewClient(apiKey string, responses *cache.Cache) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{},
		cache:   responses,
	}
}

func (c *Client) initReq(endpoint string, params url.Values) *http.Request {
	req, err := http.NewRequest("GET", c.baseURL+"/"+endpoint, nil)
	if err != nil {
		panic(err)
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Authorization", c.apiKey)
	req.URL.RawQuery = params.Encode()
	return req
}

func (c *Client) request(endpoint string, params url.Values, out any) error {
	if c.cache != nil {
		if body, ok := c.cache.Get(endpoint, params); ok {
			if err := json.Unmarshal(body, out); err == nil {
				return nil
			}
			// corrupt cache entry, go to the network instead
		}
	}

	resp, err := c.http.Do(c.initReq(endpoint, params))
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return ErrApiKeyInvalid
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusNotFound:
		// The only resources addressed by id are players.
		return ErrPlayerNotFound
	default:
		return utils.ErrorWithTrace(fmt.Errorf("request to %s failed with status %d", endpoint, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return utils.ErrorWithTrace(err)
	}
	if c.cache != nil {
		if err := c.cache.Put(endpoint, params, body); err != nil {
			log.Println(err)
		}
	}
	return nil
}

// SearchPlayers looks a player up by name. Multi-word queries hit the
// upstream twice, once with the general search parameter and once with the
// first word as first name and the last word as last name, then merge the
// results dropping duplicate ids in first-seen order.
func (c *Client) SearchPlayers(name string) ([]Player, error) {
	parts := strings.Fields(strings.TrimSpace(name))
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidParameter)
	}

	params := url.Values{}
	params.Set("search", name)
	general := playersResp{}
	if err := c.request("players", params, &general); err != nil {
		return nil, err
	}
	if len(parts) == 1 {
		return general.Data, nil
	}

	params = url.Values{}
	params.Set("first_name", parts[0])
	params.Set("last_name", parts[len(parts)-1])
	byName := playersResp{}
	if err := c.request("players", params, &byName); err != nil {
		return nil, err
	}

	seen := map[int]bool{}
	merged := make([]Player, 0, len(general.Data)+len(byName.Data))
	for _, p := range append(general.Data, byName.Data...) {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		merged = append(merged, p)
	}
	return merged, nil
}

func (c *Client) Player(id int) (*Player, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: player id must be a positive integer, got %d", ErrInvalidParameter, id)
	}
	resp := playerResp{}
	if err := c.request("players/"+strconv.Itoa(id), url.Values{}, &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrPlayerNotFound, id)
	}
	return &resp.Data, nil
}

// PlayerGameStats returns the raw per-game lines for a player, optionally
// restricted to a single season.
func (c *Client) PlayerGameStats(id int, season *int) ([]GameStat, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: player id must be a positive integer, got %d", ErrInvalidParameter, id)
	}
	if season != nil && utils.IsInvalidSeason(*season) {
		return nil, fmt.Errorf("%w: season %d is out of range", ErrInvalidParameter, *season)
	}
	params := url.Values{}
	params.Set("player_ids[]", strconv.Itoa(id))
	if season != nil {
		params.Set("seasons[]", strconv.Itoa(*season))
	}
	resp := statsResp{}
	if err := c.request("stats", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// PlayerSeasons scans every stat line the upstream has for the player and
// returns the distinct seasons, ascending.
func (c *Client) PlayerSeasons(id int) ([]int, error) {
	records, err := c.PlayerGameStats(id, nil)
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	seasons := []int{}
	for _, r := range records {
		if r.Game.Season == 0 || seen[r.Game.Season] {
			continue
		}
		seen[r.Game.Season] = true
		seasons = append(seasons, r.Game.Season)
	}
	slices.Sort(seasons)
	return seasons, nil
}

// TeamGames lists games for a team, optionally bounded by date (YYYY-MM-DD,
// inclusive) or season.
func (c *Client) TeamGames(teamID int, startDate, endDate string, season *int) ([]Game, error) {
	if teamID <= 0 {
		return nil, fmt.Errorf("%w: team id must be a positive integer, got %d", ErrInvalidParameter, teamID)
	}
	params := url.Values{}
	params.Set("team_ids[]", strconv.Itoa(teamID))
	if startDate != "" {
		params.Set("start_date", startDate)
	}
	if endDate != "" {
		params.Set("end_date", endDate)
	}
	if season != nil {
		params.Set("seasons[]", strconv.Itoa(*season))
	}
	resp := gamesResp{}
	if err := c.request("games", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
