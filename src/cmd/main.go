package main

import (
	cfg "silkyroad/src/configuration"
	"silkyroad/src/logging"
	server "silkyroad/src/server"
)

func main() {
	config := cfg.ReadProperties()
	log := logging.New(config.LogLevel, config.LogFormat)
	if err := server.RunServer(config, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
