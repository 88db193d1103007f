package services

import (
	"sort"
	"strings"
	"time"

	"github.com/6tail/lunar-go/HolidayUtil"
	"github.com/6tail/lunar-go/calendar"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/at"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/be"
	"github.com/rickar/cal/v2/br"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/ch"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/dk"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fi"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/ie"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/no"
	"github.com/rickar/cal/v2/nz"
	"github.com/rickar/cal/v2/pl"
	"github.com/rickar/cal/v2/pt"
	"github.com/rickar/cal/v2/se"
	"github.com/rickar/cal/v2/us"
)

// Country codes with special handling.
const (
	HolidayCountryNone  = "NONE" // weekdays only
	HolidayCountryChina = "CN"   // official adjusted workdays via lunar-go
)

type countryHolidays struct {
	name     string
	holidays []*cal.Holiday
}

var holidayTable = map[string]countryHolidays{
	"US": {"United States", us.Holidays},
	"GB": {"United Kingdom", gb.Holidays},
	"DE": {"Germany", de.Holidays},
	"FR": {"France", fr.Holidays},
	"JP": {"Japan", jp.Holidays},
	"AU": {"Australia", au.HolidaysNSW},
	"CA": {"Canada", ca.Holidays},
	"NZ": {"New Zealand", nz.Holidays},
	"IT": {"Italy", it.Holidays},
	"ES": {"Spain", es.Holidays},
	"NL": {"Netherlands", nl.Holidays},
	"BE": {"Belgium", be.Holidays},
	"AT": {"Austria", at.Holidays},
	"CH": {"Switzerland", ch.Holidays},
	"SE": {"Sweden", se.Holidays},
	"NO": {"Norway", no.Holidays},
	"DK": {"Denmark", dk.Holidays},
	"FI": {"Finland", fi.Holidays},
	"PL": {"Poland", pl.Holidays},
	"PT": {"Portugal", pt.Holidays},
	"IE": {"Ireland", ie.Holidays},
	"BR": {"Brazil", br.Holidays},
}

// HolidayService decides which calendar days count as working days for
// availability calculations.
type HolidayService struct {
	calendars map[string]*cal.BusinessCalendar
}

func NewHolidayService() *HolidayService {
	s := &HolidayService{calendars: make(map[string]*cal.BusinessCalendar, len(holidayTable))}
	for code, h := range holidayTable {
		c := cal.NewBusinessCalendar()
		c.Name = h.name
		c.AddHoliday(h.holidays...)
		s.calendars[code] = c
	}
	return s
}

// IsWorkday reports whether t is a working day in the given country.
// Unknown codes fall back to Monday through Friday.
func (s *HolidayService) IsWorkday(t time.Time, countryCode string) bool {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if code == HolidayCountryChina {
		return isWorkdayChina(t)
	}
	if c, ok := s.calendars[code]; ok {
		return c.IsWorkday(t)
	}
	return !cal.IsWeekend(t)
}

// isWorkdayChina honors the official holiday and make-up workday schedule.
func isWorkdayChina(t time.Time) bool {
	solar := calendar.NewSolarFromDate(t)
	if holiday := HolidayUtil.GetHolidayByYmd(solar.GetYear(), solar.GetMonth(), solar.GetDay()); holiday != nil {
		return holiday.IsWork()
	}
	return !cal.IsWeekend(t)
}

type CountryInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SupportedCountries lists the codes accepted by coverage.holiday_country.
func (s *HolidayService) SupportedCountries() []CountryInfo {
	out := make([]CountryInfo, 0, len(holidayTable)+2)
	for code, h := range holidayTable {
		out = append(out, CountryInfo{Code: code, Name: h.name})
	}
	out = append(out, CountryInfo{Code: HolidayCountryChina, Name: "China"})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return append(out, CountryInfo{Code: HolidayCountryNone, Name: "Weekdays Only (Mon-Fri)"})
}
