package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("VMM_STR", " value ")
	t.Setenv("VMM_INT", "42")
	t.Setenv("VMM_BAD_INT", "forty")
	t.Setenv("VMM_BOOL", "true")
	t.Setenv("VMM_DUR", "90s")

	assert.Equal(t, "value", GetEnv("VMM_STR", "x"))
	assert.Equal(t, "x", GetEnv("VMM_UNSET", "x"))
	assert.Equal(t, 42, GetEnvInt("VMM_INT", 1))
	assert.Equal(t, 1, GetEnvInt("VMM_BAD_INT", 1))
	assert.True(t, GetEnvBool("VMM_BOOL", false))
	assert.Equal(t, 90*time.Second, GetEnvDuration("VMM_DUR", time.Second))
}

func TestRequire_ListsMissingKeysSorted(t *testing.T) {
	err := Require(map[string]string{"JWT_SECRET": "", "PORT": "8080", "DB_PASSWORD": ""})
	assert.EqualError(t, err, "missing required configuration: DB_PASSWORD, JWT_SECRET")
	assert.NoError(t, Require(map[string]string{"PORT": "8080"}))
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: "5432", User: "u", Password: "p", Name: "auth", SSLMode: "disable", TimeZone: "UTC"}
	assert.Equal(t, "host=db user=u password=p dbname=auth port=5432 sslmode=disable TimeZone=UTC", pg.DSN())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: "3306", User: "u", Password: "p", Name: "auth"}
	assert.Equal(t, "u:p@tcp(db:3306)/auth?charset=utf8mb4&parseTime=True&loc=UTC", my.DSN())

	url := DatabaseConfig{Driver: "postgres", URL: "postgres://x"}
	assert.Equal(t, "postgres://x", url.DSN())
}

func TestApplySecrets_DisabledLeavesTargets(t *testing.T) {
	t.Setenv("AWS_USE_SECRETS", "false")
	secret := "from-env"
	assert.NoError(t, ApplySecrets(t.Context(), map[string]*string{"JWT_SECRET": &secret}))
	assert.Equal(t, "from-env", secret)
}
