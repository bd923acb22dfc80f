package config

import "fmt"

// DatabaseConfig describes a relational connection for gorm.
type DatabaseConfig struct {
	Driver   string
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
}

// LoadDatabaseConfig reads DB_* variables. DATABASE_URL wins when set.
func LoadDatabaseConfig(defaultName string) DatabaseConfig {
	driver := GetEnv("DB_DRIVER", "postgres")
	defaultPort := "5432"
	if driver == "mysql" {
		defaultPort = "3306"
	}
	return DatabaseConfig{
		Driver:   driver,
		URL:      GetEnv("DATABASE_URL", ""),
		Host:     GetEnv("DB_HOST", "localhost"),
		Port:     GetEnv("DB_PORT", defaultPort),
		User:     GetEnv("DB_USER", "postgres"),
		Password: GetEnv("DB_PASSWORD", ""),
		Name:     GetEnv("DB_NAME", defaultName),
		SSLMode:  GetEnv("DB_SSLMODE", "disable"),
		TimeZone: GetEnv("DB_TIMEZONE", "UTC"),
	}
}

// DSN renders the driver specific connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.Name)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.TimeZone)
}
