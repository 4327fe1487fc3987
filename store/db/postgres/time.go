package postgres

import "time"

// nowUnix is the single clock read used by INSERT statements that stamp
// created_ts/updated_ts, kept in one place so tests can see where wall
// time enters the driver.
func nowUnix() int64 {
	return time.Now().Unix()
}
