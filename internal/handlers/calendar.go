package handlers

import (
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/response"
	"github.com/gin-gonic/gin"
)

type CalendarHandler struct {
	holidays *services.HolidayService
}

func NewCalendarHandler(holidays *services.HolidayService) *CalendarHandler {
	return &CalendarHandler{holidays: holidays}
}

// Countries lists the holiday calendars usable as coverage.holiday_country
// GET /api/calendar/countries
func (h *CalendarHandler) Countries(c *gin.Context) {
	response.Success(c, h.holidays.SupportedCountries())
}
