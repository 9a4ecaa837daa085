package timezone

import (
	"os"
	"time"
)

var Location *time.Location

func init() {
	name := os.Getenv("RESTOCKD_TZ")
	if name == "" {
		Location = time.UTC
		return
	}
	var err error
	Location, err = time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
}

// pin the timezone explicitly so that run summaries and persisted
// timestamps don't shift around depending on where the server happens
// to be deployed
func Now() time.Time {
	return time.Now().In(Location)
}
