package bdl

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"boxout/cache"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, responses *cache.Cache) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-key", responses)
	c.baseURL = srv.URL
	return c
}

func TestPlayer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.URL.Path != "/players/237" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":{"id":237,"first_name":"LeBron","last_name":"James","team":{"id":14,"full_name":"Los Angeles Lakers"}}}`)
	}, nil)

	p, err := c.Player(237)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != 237 || p.FullName() != "LeBron James" {
		t.Errorf("unexpected player %+v", p)
	}
	if p.Team == nil || p.Team.FullName != "Los Angeles Lakers" {
		t.Errorf("unexpected team %+v", p.Team)
	}
}

func TestPlayerValidatesID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an invalid id")
	}, nil)
	for _, id := range []int{0, -1} {
		if _, err := c.Player(id); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("id %d: got %v, want ErrInvalidParameter", id, err)
		}
	}
}

func TestPlayerNotFound(t *testing.T) {
	t.Run("empty data object", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":{}}`)
		}, nil)
		if _, err := c.Player(99999); !errors.Is(err, ErrPlayerNotFound) {
			t.Errorf("got %v, want ErrPlayerNotFound", err)
		}
	})
	t.Run("upstream 404", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, nil)
		if _, err := c.Player(99999); !errors.Is(err, ErrPlayerNotFound) {
			t.Errorf("got %v, want ErrPlayerNotFound", err)
		}
	})
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrApiKeyInvalid},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}, nil)
		if _, err := c.Player(237); !errors.Is(err, tt.want) {
			t.Errorf("status %d: got %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestGenericUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, nil)
	_, err := c.Player(237)
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, sentinel := range []error{ErrInvalidParameter, ErrPlayerNotFound, ErrApiKeyInvalid, ErrRateLimited} {
		if errors.Is(err, sentinel) {
			t.Errorf("a 502 must stay a generic error, matched %v", sentinel)
		}
	}
}

func TestSearchPlayersSingleWord(t *testing.T) {
	requests := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("search") != "lebron" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"data":[{"id":237,"first_name":"LeBron","last_name":"James"}]}`)
	}, nil)

	players, err := c.SearchPlayers("lebron")
	if err != nil {
		t.Fatal(err)
	}
	if requests != 1 {
		t.Errorf("single-word search must make one request, made %d", requests)
	}
	if len(players) != 1 || players[0].ID != 237 {
		t.Errorf("unexpected results %+v", players)
	}
}

func TestSearchPlayersFullNameMergesAndDedupes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("search") != "":
			fmt.Fprint(w, `{"data":[{"id":1,"first_name":"A"},{"id":2,"first_name":"B"}]}`)
		case q.Get("first_name") == "stephen" && q.Get("last_name") == "curry":
			fmt.Fprint(w, `{"data":[{"id":2,"first_name":"B"},{"id":3,"first_name":"C"}]}`)
		default:
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
	}, nil)

	players, err := c.SearchPlayers("stephen curry")
	if err != nil {
		t.Fatal(err)
	}
	if len(players) != 3 {
		t.Fatalf("expected 3 unique players, got %d: %+v", len(players), players)
	}
	for i, want := range []int{1, 2, 3} {
		if players[i].ID != want {
			t.Errorf("position %d: got id %d, want %d (first-seen order)", i, players[i].ID, want)
		}
	}
}

func TestSearchPlayersMiddleNameSplitsFirstAndLast(t *testing.T) {
	sawByName := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("first_name") != "" {
			sawByName = true
			if q.Get("first_name") != "shai" || q.Get("last_name") != "alexander" {
				t.Errorf("first word and last word expected, got %s", r.URL.RawQuery)
			}
		}
		fmt.Fprint(w, `{"data":[]}`)
	}, nil)

	if _, err := c.SearchPlayers("shai gilgeous alexander"); err != nil {
		t.Fatal(err)
	}
	if !sawByName {
		t.Error("expected a first_name/last_name query")
	}
}

func TestSearchPlayersEmptyName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty name")
	}, nil)
	if _, err := c.SearchPlayers("   "); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("got %v, want ErrInvalidParameter", err)
	}
}

func TestPlayerGameStatsValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for invalid parameters")
	}, nil)

	if _, err := c.PlayerGameStats(0, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("got %v, want ErrInvalidParameter", err)
	}
	season := 1900
	if _, err := c.PlayerGameStats(237, &season); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("season 1900: got %v, want ErrInvalidParameter", err)
	}
	season = 9999
	if _, err := c.PlayerGameStats(237, &season); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("season 9999: got %v, want ErrInvalidParameter", err)
	}
}

func TestPlayerGameStatsSeasonFilter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("player_ids[]") != "237" || q.Get("seasons[]") != "2022" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"data":[{"pts":28,"reb":8,"min":"35:30","game":{"id":1,"season":2022}}]}`)
	}, nil)

	season := 2022
	records, err := c.PlayerGameStats(237, &season)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Min != "35:30" || records[0].Game.Season != 2022 {
		t.Errorf("unexpected records %+v", records)
	}
}

func TestPlayerSeasonsDistinctSorted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("seasons[]") {
			t.Error("seasons scan must not filter by season")
		}
		fmt.Fprint(w, `{"data":[
			{"game":{"id":1,"season":2023}},
			{"game":{"id":2,"season":2021}},
			{"game":{"id":3,"season":2023}},
			{"game":{"id":4,"season":2022}}
		]}`)
	}, nil)

	seasons, err := c.PlayerSeasons(237)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{2021, 2022, 2023}
	if len(seasons) != len(want) {
		t.Fatalf("got %v, want %v", seasons, want)
	}
	for i := range want {
		if seasons[i] != want[i] {
			t.Fatalf("got %v, want %v", seasons, want)
		}
	}
}

func TestTeamGamesFilters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("team_ids[]") != "14" || q.Get("start_date") != "2025-01-01" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"data":[{"id":5,"date":"2025-01-02","home_team":{"full_name":"Los Angeles Lakers"},"visitor_team":{"full_name":"Boston Celtics"}}]}`)
	}, nil)

	games, err := c.TeamGames(14, "2025-01-01", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 1 || games[0].HomeTeam.FullName != "Los Angeles Lakers" {
		t.Errorf("unexpected games %+v", games)
	}
}

func TestRequestServedFromCache(t *testing.T) {
	responses, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	requests := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"data":[{"game":{"id":1,"season":2022}}]}`)
	}, responses)

	if _, err := c.PlayerGameStats(237, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.PlayerGameStats(237, nil); err != nil {
		t.Fatal(err)
	}
	if requests != 1 {
		t.Errorf("second identical request should hit the cache, server saw %d", requests)
	}
}

func TestCorruptCacheEntryFallsThrough(t *testing.T) {
	responses, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	params := url.Values{}
	params.Set("player_ids[]", "237")
	if err := responses.Put("stats", params, []byte("not json")); err != nil {
		t.Fatal(err)
	}

	requests := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"data":[]}`)
	}, responses)

	if _, err := c.PlayerGameStats(237, nil); err != nil {
		t.Fatal(err)
	}
	if requests != 1 {
		t.Errorf("corrupt cache entry must fall through to the network, server saw %d", requests)
	}
	// and the good response should have replaced the bad entry
	body, ok := responses.Get("stats", params)
	if !ok || string(body) != `{"data":[]}` {
		t.Errorf("cache not repaired, got %q", body)
	}
}
