package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"boxout/bdl"
	"boxout/cache"
	"boxout/calendar"
	"boxout/config"
	"boxout/db"
	"boxout/stats"
	"boxout/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

var sigChan = make(chan os.Signal, 1)

func init() {
	if err := config.LoadConfig(); err != nil {
		panic(err)
	}
	if err := db.SetupDatabase(); err != nil {
		panic(err)
	}
	if err := db.RunMigrations(); err != nil {
		panic(err)
	}
	if err := db.ValidateMigrations(); err != nil {
		panic(err)
	}
	signal.Notify(sigChan, syscall.SIGTERM, os.Interrupt, syscall.SIGINT)
	go cleanup()
	if err := calendar.InitService(); err != nil {
		log.Println("calendar service unavailable, /calendar routes will 401:", err)
	} else {
		go calendar.ServiceJanitor()
	}
}

func cleanup() {
	<-sigChan
	fmt.Println("\nshutting down...")
	os.Exit(0)
}

type searchResponse struct {
	Count   int          `json:"count"`
	Results []bdl.Player `json:"results"`
}

type playerWithStats struct {
	bdl.Player
	Stats *bdl.GameStat `json:"stats"`
}

type compareRequest struct {
	Seasons []int `json:"seasons"`
}

type authStatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Message       string `json:"message"`
}

func main() {
	responses, err := cache.New(config.CacheDir)
	if err != nil {
		panic(err)
	}
	go responses.Janitor(6*time.Hour, 24*time.Hour)

	client := bdl.NewClient(config.BallDontLieApiKey, responses)
	comparator := stats.NewComparator(client)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())
	// ~100 requests per minute per IP, what the upstream plan tolerates.
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(100.0 / 60.0))))

	e.GET("/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"message": "Welcome to the NBA Player Analysis API",
			"version": "0.1.0",
		})
	})

	e.GET("/players/search", func(c echo.Context) error {
		name := strings.TrimSpace(c.QueryParam("name"))
		if name == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "name is required")
		}
		players, err := client.SearchPlayers(name)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(200, searchResponse{Count: len(players), Results: players})
	})

	e.GET("/players/:id", func(c echo.Context) error {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "player id must be an integer")
		}
		player, err := client.Player(id)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(200, player)
	})

	e.GET("/players/:id/stats", func(c echo.Context) error {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "player id must be an integer")
		}
		var season *int
		if s := c.QueryParam("season"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "season must be an integer")
			}
			season = &v
		}
		player, err := client.Player(id)
		if err != nil {
			return httpError(err)
		}
		records, err := client.PlayerGameStats(id, season)
		if err != nil {
			return httpError(err)
		}
		resp := playerWithStats{Player: *player}
		if len(records) > 0 {
			resp.Stats = &records[0]
		}
		return c.JSON(200, resp)
	})

	e.GET("/stats/player/:id/seasons", func(c echo.Context) error {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "player id must be an integer")
		}
		seasons, err := client.PlayerSeasons(id)
		if err != nil {
			return httpError(err)
		}
		if len(seasons) == 0 {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no seasons found for player ID %d", id))
		}
		return c.JSON(200, seasons)
	})

	e.GET("/stats/player/:id/compare", func(c echo.Context) error {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "player id must be an integer")
		}
		seasons, err := parseSeasonsParam(c.QueryParams()["seasons"])
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		result, err := comparator.Compare(id, seasons)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(200, result)
	})

	e.POST("/stats/player/:id/compare", func(c echo.Context) error {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "player id must be an integer")
		}
		req := compareRequest{}
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "request body must be JSON with a seasons array")
		}
		result, err := comparator.Compare(id, req.Seasons)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(200, result)
	})

	e.GET("/calendar/auth-status", func(c echo.Context) error {
		if calendar.IsAuthenticated() {
			return c.JSON(200, authStatusResponse{Authenticated: true, Message: "Authenticated and ready to use"})
		}
		return c.JSON(200, authStatusResponse{Authenticated: false, Message: "Not authenticated"})
	})

	e.GET("/calendar/upcoming-events", func(c echo.Context) error {
		if !calendar.IsAuthenticated() {
			return echo.NewHTTPError(http.StatusUnauthorized, "Calendar service not authenticated")
		}
		maxResults := int64(10)
		if s := c.QueryParam("max_results"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil || v <= 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "max_results must be a positive integer")
			}
			maxResults = v
		}
		events, err := calendar.UpcomingEvents(maxResults)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(200, events)
	})

	e.POST("/calendar/add-game", func(c echo.Context) error {
		if !calendar.IsAuthenticated() {
			return echo.NewHTTPError(http.StatusUnauthorized, "Calendar service not authenticated")
		}
		ev := calendar.Event{}
		if err := c.Bind(&ev); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON game event")
		}
		if ev.Summary == "" || ev.StartDateTime == "" || ev.EndDateTime == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "summary, start_datetime and end_datetime are required")
		}
		created, err := calendar.AddEvent(ev)
		if err != nil {
			return httpError(err)
		}
		recordCalendarEvent(created, ev)
		return c.JSON(200, created)
	})

	e.POST("/calendar/add-team-games", func(c echo.Context) error {
		if !calendar.IsAuthenticated() {
			return echo.NewHTTPError(http.StatusUnauthorized, "Calendar service not authenticated")
		}
		teamID, err := strconv.Atoi(c.QueryParam("team_id"))
		if err != nil || teamID <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "team_id must be a positive integer")
		}
		maxGames := 5
		if s := c.QueryParam("max_games"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v <= 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "max_games must be a positive integer")
			}
			maxGames = v
		}

		today := time.Now().Format("2006-01-02")
		games, err := client.TeamGames(teamID, today, "", nil)
		if err != nil {
			return httpError(err)
		}
		if len(games) == 0 {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no upcoming games found for team ID %d", teamID))
		}
		if len(games) > maxGames {
			games = games[:maxGames]
		}

		results := make([]*calendar.CreatedEvent, 0, len(games))
		for _, g := range games {
			ev := calendar.FormatGame(g)
			created, err := calendar.AddEvent(ev)
			if err != nil {
				log.Println(utils.ErrorWithTrace(err))
				continue
			}
			recordCalendarEvent(created, ev)
			results = append(results, created)
		}
		if len(results) == 0 {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to add any games to calendar")
		}
		return c.JSON(200, results)
	})

	e.GET("/calendar/added-games", func(c echo.Context) error {
		if s := c.QueryParam("game_id"); s != "" {
			gameID, err := strconv.Atoi(s)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "game_id must be an integer")
			}
			events, err := db.SelectCalendarEventsByGameId(gameID)
			if err != nil {
				return httpError(err)
			}
			return c.JSON(200, events)
		}
		events, err := db.SelectCalendarEvents()
		if err != nil {
			return httpError(err)
		}
		return c.JSON(200, events)
	})

	e.Logger.Fatal(e.Start(":8080"))
}

// parseSeasonsParam accepts both repeated seasons params and a single
// comma-separated value.
func parseSeasonsParam(raw []string) ([]int, error) {
	seasons := []int{}
	for _, chunk := range raw {
		for _, s := range strings.Split(chunk, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("season %q must be an integer", s)
			}
			seasons = append(seasons, v)
		}
	}
	return seasons, nil
}

// The ledger is best effort, a failed insert never fails the request.
func recordCalendarEvent(created *calendar.CreatedEvent, ev calendar.Event) {
	row := db.NewCalendarEvent(created.ID, ev.GameID, ev.Summary, ev.StartDateTime, created.HtmlLink)
	if err := db.InsertCalendarEvent(row); err != nil {
		log.Println(utils.ErrorWithTrace(err))
	}
}

// httpError maps the client's error kinds to transport status codes. This is
// the only place the taxonomy meets HTTP.
func httpError(err error) error {
	switch {
	case errors.Is(err, bdl.ErrInvalidParameter):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, bdl.ErrPlayerNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, bdl.ErrApiKeyInvalid):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, bdl.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	default:
		log.Println(utils.ErrorWithTrace(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "An unexpected error occurred")
	}
}
