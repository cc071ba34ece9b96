package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"boxout/bdl"
	"boxout/config"
	"boxout/utils"

	"golang.org/x/net/context"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

var tokenMu = sync.Mutex{}
var secretMu = sync.Mutex{}

var service *gcal.Service
var serviceMut = sync.RWMutex{}

// Event is a game formatted for the user's calendar.
type Event struct {
	Summary       string `json:"summary"`
	Location      string `json:"location"`
	Description   string `json:"description"`
	StartDateTime string `json:"start_datetime"`
	EndDateTime   string `json:"end_datetime"`
	GameID        int    `json:"game_id"`
	HomeTeam      string `json:"home_team"`
	VisitorTeam   string `json:"visitor_team"`
}

type CreatedEvent struct {
	ID       string `json:"id"`
	HtmlLink string `json:"htmlLink"`
	Status   string `json:"status"`
}

type UpcomingEvent struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Start    string `json:"start"`
	HtmlLink string `json:"htmlLink"`
}

// FormatGame turns an upstream game into a calendar event. The upstream feed
// has no tip-off time, so games are penciled in from 7:30pm to 10pm local.
func FormatGame(g bdl.Game) Event {
	arena := g.HomeTeam.Name
	if arena == "" {
		arena = "Arena"
	}
	return Event{
		Summary:       fmt.Sprintf("%s @ %s", g.VisitorTeam.FullName, g.HomeTeam.FullName),
		Location:      fmt.Sprintf("%s, %s", g.HomeTeam.City, arena),
		Description:   fmt.Sprintf("NBA game: %s at %s", g.VisitorTeam.FullName, g.HomeTeam.FullName),
		StartDateTime: g.Date + "T19:30:00",
		EndDateTime:   g.Date + "T22:00:00",
		GameID:        g.ID,
		HomeTeam:      g.HomeTeam.FullName,
		VisitorTeam:   g.VisitorTeam.FullName,
	}
}

func GetService() (*gcal.Service, error) {
	oauthConfig, err := OAuthConfig()
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	token, err := GetToken(oauthConfig)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	ctx := context.Background()
	client := oauthConfig.Client(ctx, token)
	service, err := gcal.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return service, nil
}

func GetToken(oauthConfig *oauth2.Config) (*oauth2.Token, error) {
	tokenMu.Lock()
	defer tokenMu.Unlock()
	token, err := tokenFromFile(config.TokenFile)
	if err != nil {
		token, err = getTokenFromWeb(oauthConfig)
		if err != nil {
			return nil, utils.ErrorWithTrace(err)
		}
		if err := saveToken(config.TokenFile, token); err != nil {
			return nil, utils.ErrorWithTrace(err)
		}
	} else {
		tokenSource := oauthConfig.TokenSource(context.Background(), token)
		newTok, err := tokenSource.Token()
		if err != nil {
			webTok, err2 := getTokenFromWeb(oauthConfig)
			if err2 != nil {
				return nil, errors.Join(err, err2)
			}
			if err := saveToken(config.TokenFile, webTok); err != nil {
				return nil, utils.ErrorWithTrace(err)
			}
			token = webTok
		} else if newTok.AccessToken != token.AccessToken {
			if err := saveToken(config.TokenFile, newTok); err != nil {
				return nil, utils.ErrorWithTrace(err)
			}
			token = newTok
		}
	}
	return token, nil
}

func getTokenFromWeb(oauthConfig *oauth2.Config) (*oauth2.Token, error) {
	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the "+
		"authorization code: \n%v\n", authURL)

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return nil, utils.ErrorWithTrace(fmt.Errorf("unable to read authorization code %v", err))
	}

	tok, err := oauthConfig.Exchange(context.Background(), code)
	if err != nil {
		return nil, utils.ErrorWithTrace(fmt.Errorf("unable to retrieve token from web %v", err))
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	defer f.Close()

	t := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(t)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}

	return t, nil
}

// saveToken uses a file path to create a file and store the
// token in it.
func saveToken(file string, token *oauth2.Token) error {
	fmt.Printf("Saving credential file to: %s\n", file)
	f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return utils.ErrorWithTrace(fmt.Errorf("unable to cache oauth token: %v", err))
	}
	defer f.Close()
	json.NewEncoder(f).Encode(token)
	return nil
}

func OAuthConfig() (*oauth2.Config, error) {
	secretMu.Lock()
	defer secretMu.Unlock()
	b, err := os.ReadFile(config.SecretFile)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}

	oauthConfig, err := google.ConfigFromJSON(b, gcal.CalendarScope)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}

	return oauthConfig, nil
}

func InitService() error {
	var err error
	serviceMut.Lock()
	defer serviceMut.Unlock()
	service, err = GetService()
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	return nil
}

// IsAuthenticated reports whether the calendar service is ready to use.
func IsAuthenticated() bool {
	serviceMut.RLock()
	defer serviceMut.RUnlock()
	return service != nil
}

// AddEvent inserts the event into the user's primary calendar with reminders
// a day and ninety minutes out.
func AddEvent(ev Event) (*CreatedEvent, error) {
	serviceMut.RLock()
	defer serviceMut.RUnlock()
	if service == nil {
		return nil, utils.ErrorWithTrace(errors.New("calendar service not authenticated"))
	}

	item := &gcal.Event{
		Summary:     ev.Summary,
		Location:    ev.Location,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.StartDateTime,
			TimeZone: "America/New_York",
		},
		End: &gcal.EventDateTime{
			DateTime: ev.EndDateTime,
			TimeZone: "America/New_York",
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 90},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	created, err := service.Events.Insert("primary", item).Do()
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return &CreatedEvent{
		ID:       created.Id,
		HtmlLink: created.HtmlLink,
		Status:   "created",
	}, nil
}

// UpcomingEvents lists the next events on the user's primary calendar.
func UpcomingEvents(maxResults int64) ([]UpcomingEvent, error) {
	serviceMut.RLock()
	defer serviceMut.RUnlock()
	if service == nil {
		return nil, utils.ErrorWithTrace(errors.New("calendar service not authenticated"))
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := service.Events.List("primary").
		TimeMin(now).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}

	events := make([]UpcomingEvent, 0, len(res.Items))
	for _, e := range res.Items {
		start := e.Start.DateTime
		if start == "" {
			start = e.Start.Date
		}
		events = append(events, UpcomingEvent{
			ID:       e.Id,
			Summary:  e.Summary,
			Start:    start,
			HtmlLink: e.HtmlLink,
		})
	}
	return events, nil
}

// ServiceJanitor rebuilds the calendar service every few hours so the cached
// token never goes stale mid-request.
func ServiceJanitor() {
	ticker := time.NewTicker(8 * time.Hour)
	for range ticker.C {
		svc, err := GetService()
		if err != nil {
			fmt.Println(utils.ErrorWithTrace(err))
			continue
		}
		serviceMut.Lock()
		service = svc
		serviceMut.Unlock()
	}
}
