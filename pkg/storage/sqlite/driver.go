package sqlite

import (
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/ray-0411/vtuber-data-analyze/pkg/config"
)

// dsn builds a data source name for the chosen driver. Both enable foreign
// keys and a busy timeout; pragma syntax differs between the two.
func dsn(driver, path string) (string, error) {
	switch driver {
	case "", config.DriverModernc:
		return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	case config.DriverCgo:
		return "file:" + path + "?_foreign_keys=1&_busy_timeout=5000", nil
	default:
		return "", fmt.Errorf("unknown snapshot driver %q", driver)
	}
}

func driverName(driver string) string {
	if driver == "" {
		return config.DriverModernc
	}
	return driver
}
