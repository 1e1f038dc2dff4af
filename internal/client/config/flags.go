package config

import (
	"flag"
	"os"

	"github.com/ssergeev/studysync/internal/flagx"
)

// parseFlags populates selected client Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   sync server base URL
//	-k string   bearer token
//	-d string   sqlite database path
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-k", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ServerEndpointAddr, "a", config.ServerEndpointAddr, "sync server base URL")
	fs.StringVar(&config.AuthToken, "k", config.AuthToken, "bearer token")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "sqlite database path")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
