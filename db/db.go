package db

import (
	"fmt"
	"log"
	"os"

	"boxout/config"
	"boxout/utils"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
)

// CalendarEvent is the ledger row for a game the service has pushed to the
// user's Google Calendar. It exists so the API can answer "what did I add"
// without a calendar round trip.
type CalendarEvent struct {
	Id        int64  `db:"id" json:"id"`
	EventId   string `db:"event_id" json:"event_id"`
	GameId    int    `db:"game_id" json:"game_id"`
	Summary   string `db:"summary" json:"summary"`
	StartTime string `db:"start_time" json:"start_time"`
	HtmlLink  string `db:"html_link" json:"html_link"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

func NewCalendarEvent(eventId string, gameId int, summary, startTime, htmlLink string) *CalendarEvent {
	return &CalendarEvent{
		EventId:   eventId,
		GameId:    gameId,
		Summary:   summary,
		StartTime: startTime,
		HtmlLink:  htmlLink,
	}
}

func SetupDatabase() error {
	_, err := os.Stat(config.DatabaseFile)
	if os.IsNotExist(err) {
		log.Println("Database file not found. Creating a new database.")
		file, err := os.Create(config.DatabaseFile)
		if err != nil {
			return utils.ErrorWithTrace(err)
		}
		file.Close()
	} else if err != nil {
		return utils.ErrorWithTrace(err)
	}
	return nil
}

func RunMigrations() error {
	m, err := migrate.New(
		"file://db/migrations",
		"sqlite3://"+config.DatabaseFile,
	)
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return utils.ErrorWithTrace(err)
	}
	return nil
}

func ValidateMigrations() error {
	db, err := sqlx.Open("sqlite3", config.DatabaseFile)
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM calendar_events").Scan(&count); err != nil {
		return utils.ErrorWithTrace(fmt.Errorf("calendar_events table missing: %v", err))
	}
	return nil
}

func InsertCalendarEvent(ev *CalendarEvent) error {
	db, err := sqlx.Open("sqlite3", config.DatabaseFile)
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	defer db.Close()

	query := `
		INSERT INTO calendar_events (
			event_id, game_id, summary, start_time, html_link
		) VALUES (
			:event_id, :game_id, :summary, :start_time, :html_link
		)
	`
	if _, err := db.NamedExec(query, ev); err != nil {
		return utils.ErrorWithTrace(err)
	}
	return nil
}

func SelectCalendarEvents() ([]CalendarEvent, error) {
	db, err := sqlx.Open("sqlite3", config.DatabaseFile)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	defer db.Close()

	query := `
		SELECT * FROM calendar_events ORDER BY created_at DESC;
	`

	events := []CalendarEvent{}
	if err := db.Select(&events, query); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return events, nil
}

func SelectCalendarEventsByGameId(gameId int) ([]CalendarEvent, error) {
	db, err := sqlx.Open("sqlite3", config.DatabaseFile)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	defer db.Close()

	query := `
		SELECT * FROM calendar_events WHERE game_id = ? ORDER BY created_at DESC;
	`

	events := []CalendarEvent{}
	if err := db.Select(&events, query, gameId); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return events, nil
}
