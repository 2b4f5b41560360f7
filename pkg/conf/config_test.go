package conf

import (
	"flag"
	"testing"
)

// Initialized after this package's init but before the test framework
// parses the command line, so it observes what importing the package did.
var parsedAtInit = flag.Parsed()

func TestImportDoesNotParseFlags(t *testing.T) {
	// Importers register their own flags after this package loads; parsing
	// at init would reject them before any of their code runs.
	if parsedAtInit {
		t.Fatal("command line was parsed during package initialization")
	}
	if flag.Lookup("config") == nil {
		t.Fatal("config flag was not registered")
	}
}

func TestParseConfigEnvAndDefaults(t *testing.T) {
	type testConfig struct {
		Server struct {
			ListenAddress string
		}
		DataBase struct {
			Port uint16
		}
	}

	t.Setenv("TC_SERVER_LISTENADDRESS", ":9090")

	config := &testConfig{}
	err := ParseConfig(config,
		EnvPrefix("TC"),
		Defaults(map[string]interface{}{
			"DataBase.Port": 5432,
		}),
	)
	if err != nil {
		t.Fatal("Failed to parse config:", err)
	}

	if config.Server.ListenAddress != ":9090" {
		t.Fatalf("unexpected listen address %q", config.Server.ListenAddress)
	}
	if config.DataBase.Port != 5432 {
		t.Fatalf("unexpected database port %d", config.DataBase.Port)
	}
}
