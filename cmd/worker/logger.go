package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// asynqLogger routes asynq's internal logging into zerolog.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) {
	log.Debug().Str("component", "asynq").Msg(fmt.Sprint(args...))
}
func (asynqLogger) Info(args ...interface{}) {
	log.Info().Str("component", "asynq").Msg(fmt.Sprint(args...))
}
func (asynqLogger) Warn(args ...interface{}) {
	log.Warn().Str("component", "asynq").Msg(fmt.Sprint(args...))
}
func (asynqLogger) Error(args ...interface{}) {
	log.Error().Str("component", "asynq").Msg(fmt.Sprint(args...))
}
func (asynqLogger) Fatal(args ...interface{}) {
	log.Fatal().Str("component", "asynq").Msg(fmt.Sprint(args...))
}
