package constants

import "time"

const (
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
	LockWaitTimeout = 10 * time.Second
	ClientTimeout   = 10 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBusyTimeoutMS   = 5000
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	ServicePath = "/rps.v1.RoundService/"

	PlayRoundProcedure       = ServicePath + "PlayRound"
	GetSessionStatsProcedure = ServicePath + "GetSessionStats"
	GetGameHistoryProcedure  = ServicePath + "GetGameHistory"
	ResetSessionProcedure    = ServicePath + "ResetSession"
	HealthcheckProcedure     = ServicePath + "Healthcheck"
)

const (
	SessionIDPrefix = "session-"
	SessionIDLength = 13
)
