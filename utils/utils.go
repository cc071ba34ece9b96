package utils

import (
	"fmt"
	"runtime"

	"boxout/config"
)

func ErrorWithTrace(e error) error {
	_, file, line, _ := runtime.Caller(1)
	return fmt.Errorf("%s:%d\n\t%v", file, line, e)
}

func IsInvalidSeason(season int) bool {
	return season < config.MinSeason || season > config.MaxSeason()
}
