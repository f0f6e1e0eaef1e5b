package main

import (
	cfg "silkyroad/src/configuration"
	"silkyroad/src/logging"
	server "silkyroad/src/server"
)

func main() {
	config := cfg.ReadProperties()
	log := logging.New(config.LogLevel, config.LogFormat)
	if err := server.RunPayoutServer(config, log); err != nil {
		log.WithError(err).Fatal("payout server stopped")
	}
}
