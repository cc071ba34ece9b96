package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

var DatabaseFile string
var CacheDir string
var SecretFile string
var TokenFile string
var BallDontLieApiKey string
var ProdFlag *bool

// Seasons are identified by the year they began. The league tipped off in 1946.
const MinSeason = 1946

func MaxSeason() int {
	return time.Now().Year()
}

func LoadConfig() error {
	ProdFlag = flag.BoolP("prod", "p", false, "designates production")
	flag.Parse()
	binPath, err := os.Executable()
	if err != nil {
		return err
	}
	if *ProdFlag {
		DatabaseFile = "/sqlitedata/database.db"
		CacheDir = "/cachedata"
		SecretFile = "/secrets/secret.json"
		TokenFile = "/secrets/token.json"
	} else {
		DatabaseFile = filepath.Join(filepath.Dir(binPath), "database.db")
		CacheDir = filepath.Join(filepath.Dir(binPath), "data")
		SecretFile = filepath.Join(filepath.Dir(binPath), "secret.json")
		TokenFile = filepath.Join(filepath.Dir(binPath), "token.json")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on the environment")
	}
	BallDontLieApiKey = os.Getenv("BALLDONTLIE_API_KEY")
	if BallDontLieApiKey == "" {
		log.Println("BALLDONTLIE_API_KEY is not set, upstream calls will fail")
	}
	return nil
}
