// Package dbconfig loads {PREFIX}_HOST/USER/PASSWORD/DATABASE/PORT-style
// MySQL connection settings from the environment, the same shape as the
// distilled system's ETL_* (task store) and DB_* (application store)
// prefixes, using the teacher's config.GetEnvAsString/GetEnvAsInt helpers.
package dbconfig

import (
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/asksbj/jpstamp-pipeline/config"
)

// Settings holds one database's connection parameters.
type Settings struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Load reads {prefix}_HOST, {prefix}_PORT, {prefix}_USER, {prefix}_PASSWORD
// and {prefix}_DATABASE, applying conventional MySQL defaults for any
// variable left unset.
func Load(prefix string) (Settings, error) {
	port, err := config.GetEnvAsInt(prefix+"_PORT", 3306)
	if err != nil {
		return Settings{}, fmt.Errorf("dbconfig: %s_PORT: %w", prefix, err)
	}

	return Settings{
		Host:     config.GetEnvAsString(prefix+"_HOST", "127.0.0.1"),
		Port:     port,
		User:     config.GetEnvAsString(prefix+"_USER", "root"),
		Password: config.GetEnvAsString(prefix+"_PASSWORD", ""),
		Database: config.GetEnvAsString(prefix+"_DATABASE", ""),
	}, nil
}

// DSN renders s as a go-sql-driver/mysql data source name, with
// parseTime enabled so DATETIME columns scan directly into time.Time.
func (s Settings) DSN() string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", s.Host, s.Port)
	cfg.User = s.User
	cfg.Passwd = s.Password
	cfg.DBName = s.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}
