package parse

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"
)

// The subset of a static GTFS bundle the fallback timetable needs.
type Static struct {
	Stops     []StaticStop
	Routes    []StaticRoute
	Trips     []StaticTrip
	StopTimes []StaticStopTime
	Calendars []StaticCalendar
}

type StaticStop struct {
	ID            string  `csv:"stop_id"`
	Name          string  `csv:"stop_name"`
	Lat           float64 `csv:"stop_lat"`
	Lon           float64 `csv:"stop_lon"`
	LocationType  int8    `csv:"location_type"`
	ParentStation string  `csv:"parent_station"`
	PlatformCode  string  `csv:"platform_code"`
}

type StaticRoute struct {
	ID        string `csv:"route_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
	Type      int    `csv:"route_type"`
}

type StaticTrip struct {
	ID          string `csv:"trip_id"`
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	Headsign    string `csv:"trip_headsign"`
	DirectionID int8   `csv:"direction_id"`
}

type StaticStopTime struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  uint32 `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
}

type StaticCalendar struct {
	ServiceID string `csv:"service_id"`
	Monday    int8   `csv:"monday"`
	Tuesday   int8   `csv:"tuesday"`
	Wednesday int8   `csv:"wednesday"`
	Thursday  int8   `csv:"thursday"`
	Friday    int8   `csv:"friday"`
	Saturday  int8   `csv:"saturday"`
	Sunday    int8   `csv:"sunday"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
}

// RunsOn reports whether the service runs on the given weekday.
func (c StaticCalendar) RunsOn(day time.Weekday) bool {
	switch day {
	case time.Monday:
		return c.Monday == 1
	case time.Tuesday:
		return c.Tuesday == 1
	case time.Wednesday:
		return c.Wednesday == 1
	case time.Thursday:
		return c.Thursday == 1
	case time.Friday:
		return c.Friday == 1
	case time.Saturday:
		return c.Saturday == 1
	}
	return c.Sunday == 1
}

// DepartureOffset parses a GTFS HH:MM:SS time as an offset from
// midnight. Hours past 24 are legal (overnight trips).
func DepartureOffset(s string) (time.Duration, error) {
	split := strings.Split(strings.TrimSpace(s), ":")
	if len(split) != 3 {
		return 0, fmt.Errorf("found %d parts in '%s'", len(split), s)
	}

	hms := [3]int{}
	for i, str := range split {
		j, err := strconv.Atoi(str)
		if err != nil {
			return 0, fmt.Errorf("non-integer in '%s' pos %d", s, i)
		}
		hms[i] = j
	}
	if hms[0] < 0 || hms[0] > 99 {
		return 0, fmt.Errorf("invalid hour in '%s'", s)
	}
	if hms[1] < 0 || hms[1] > 59 {
		return 0, fmt.Errorf("invalid minute in '%s'", s)
	}
	if hms[2] < 0 || hms[2] > 59 {
		return 0, fmt.Errorf("invalid second in '%s'", s)
	}

	return time.Duration(hms[0])*time.Hour +
		time.Duration(hms[1])*time.Minute +
		time.Duration(hms[2])*time.Second, nil
}

// ParseStaticZip reads the needed files out of a static GTFS zip.
func ParseStaticZip(buf []byte) (*Static, error) {
	file := map[string]io.ReadCloser{
		"stops.txt":      nil,
		"routes.txt":     nil,
		"trips.txt":      nil,
		"stop_times.txt": nil,
		"calendar.txt":   nil,
	}
	defer func() {
		for _, rc := range file {
			if rc != nil {
				rc.Close()
			}
		}
	}()

	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("unzipping: %w", err)
	}

	for _, f := range r.File {
		// There should not be any subdirectories. But, some
		// agencies don't care.
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		fName := path[len(path)-1]
		if _, found := file[fName]; !found {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		file[fName] = rc
	}

	for name, rc := range file {
		if rc == nil {
			return nil, fmt.Errorf("missing %s", name)
		}
	}

	// LazyCSVReader required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})

	static := &Static{}
	if err := gocsv.Unmarshal(file["stops.txt"], &static.Stops); err != nil {
		return nil, fmt.Errorf("unmarshaling stops csv: %w", err)
	}
	if err := gocsv.Unmarshal(file["routes.txt"], &static.Routes); err != nil {
		return nil, fmt.Errorf("unmarshaling routes csv: %w", err)
	}
	if err := gocsv.Unmarshal(file["trips.txt"], &static.Trips); err != nil {
		return nil, fmt.Errorf("unmarshaling trips csv: %w", err)
	}
	if err := gocsv.Unmarshal(file["stop_times.txt"], &static.StopTimes); err != nil {
		return nil, fmt.Errorf("unmarshaling stop_times csv: %w", err)
	}
	if err := gocsv.Unmarshal(file["calendar.txt"], &static.Calendars); err != nil {
		return nil, fmt.Errorf("unmarshaling calendar csv: %w", err)
	}

	for _, stop := range static.Stops {
		if stop.ID == "" {
			return nil, fmt.Errorf("empty stop_id")
		}
	}
	for _, st := range static.StopTimes {
		if _, err := DepartureOffset(st.DepartureTime); err != nil {
			return nil, fmt.Errorf("stop_time for trip '%s': %w", st.TripID, err)
		}
	}

	return static, nil
}
