package main

import (
	"flag"
	"os"

	log "github.com/sirupsen/logrus"

	C "multitouch/config"
	"multitouch/model/store"
	T "multitouch/task/attribution"
)

func main() {
	conf, err := C.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load config.")
	}

	env := flag.String("env", conf.Env, "")

	dbHost := flag.String("db_host", conf.DBInfo.Host, "")
	dbPort := flag.Int("db_port", conf.DBInfo.Port, "")
	dbUser := flag.String("db_user", conf.DBInfo.User, "")
	dbName := flag.String("db_name", conf.DBInfo.Name, "")
	dbPass := flag.String("db_pass", conf.DBInfo.Password, "")

	sentryDSN := flag.String("sentry_dsn", conf.SentryDSN, "Sentry DSN")

	retentionDays := flag.Int("retention_days", conf.TouchRetentionDays, "Touches older than this are deleted.")
	flag.Parse()

	conf.AppName = "run_touch_retention"
	conf.Env = *env
	conf.DBInfo.Host = *dbHost
	conf.DBInfo.Port = *dbPort
	conf.DBInfo.User = *dbUser
	conf.DBInfo.Name = *dbName
	conf.DBInfo.Password = *dbPass
	conf.SentryDSN = *sentryDSN
	conf.TouchRetentionDays = *retentionDays
	// Retention does not use the cache or the batch lock.
	conf.RedisHost = ""

	if err := conf.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid config.")
	}

	if err := C.InitLogging(conf); err != nil {
		log.WithError(err).Fatal("Failed to initialize logging.")
	}

	services, err := C.InitServices(conf)
	if err != nil {
		log.WithError(err).Error("Failed to initialize services.")
		os.Exit(1)
	}
	defer services.Close()

	engine := T.NewEngine(store.NewStore(services.Db), conf, nil)

	deleted, err := engine.PurgeExpiredTouches()
	if err != nil {
		log.WithError(err).Error("Failed to purge expired touches.")
		services.Close()
		os.Exit(1)
	}

	log.WithFields(log.Fields{"retention_days": *retentionDays, "deleted": deleted}).
		Info("Successfully purged expired touches.")
}
