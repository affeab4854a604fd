package main

import (
	"github.com/kibertoad/fauxqs/internal/cmd"
	"github.com/rs/zerolog/log"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		log.Fatal().Err(err).Msg("fauxqs exited")
	}
}
