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

	redisHost := flag.String("redis_host", conf.RedisHost, "Batch lock is disabled without redis.")
	redisPort := flag.Int("redis_port", conf.RedisPort, "")

	sentryDSN := flag.String("sentry_dsn", conf.SentryDSN, "Sentry DSN")

	limit := flag.Int("limit", conf.BatchSize, "Max no.of conversions to process on this run.")
	numRoutines := flag.Int("num_routines", conf.NumRoutines, "No.of conversions scored in parallel.")
	lookbackDays := flag.Int("lookback_days", conf.LookbackDays, "")
	migrate := flag.Bool("migrate", false, "Create or update the attribution tables before processing.")
	flag.Parse()

	conf.AppName = "run_process_pending_conversions"
	conf.Env = *env
	conf.DBInfo.Host = *dbHost
	conf.DBInfo.Port = *dbPort
	conf.DBInfo.User = *dbUser
	conf.DBInfo.Name = *dbName
	conf.DBInfo.Password = *dbPass
	conf.RedisHost = *redisHost
	conf.RedisPort = *redisPort
	conf.SentryDSN = *sentryDSN
	conf.BatchSize = *limit
	conf.NumRoutines = *numRoutines
	conf.LookbackDays = *lookbackDays

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

	if *migrate {
		if err := store.Migrate(services.Db); err != nil {
			services.Close()
			os.Exit(1)
		}
	}

	engine := T.NewEngine(store.NewStore(services.Db), conf, services.Redis)

	logCtx := log.WithFields(log.Fields{"limit": *limit, "num_routines": *numRoutines})
	status, err := engine.ProcessPendingConversions(*limit)
	if err == T.ErrBatchInProgress {
		logCtx.Info("Another attribution batch in progress. Exiting.")
		return
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to process pending conversions.")
		services.Close()
		os.Exit(1)
	}

	logCtx.WithFields(log.Fields{
		"processed": status.Processed,
		"errors":    status.Errors,
		"pending":   status.Pending,
	}).Info("Successfully processed pending conversions.")
}
