// Package datetime turns a customer's "DD/MM/YYYY HH:MM" reply into a booking slot.
package datetime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // the shop's zone must resolve on hosts without zoneinfo

	"barbearia-twowell/internal/common/errors"
	"barbearia-twowell/internal/models"
)

const (
	// Timezone is the shop's local zone; every slot is interpreted in it.
	Timezone = "America/Sao_Paulo"
	// SlotDuration is the fixed length of an appointment.
	SlotDuration = 60 * time.Minute
	// Format is the human description of the accepted input.
	Format = "DD/MM/AAAA HH:MM"
)

// Parser parses booking replies in a fixed location.
type Parser struct {
	loc *time.Location
}

// NewParser returns a Parser for the shop's timezone.
func NewParser() (*Parser, error) {
	loc, err := time.LoadLocation(Timezone)
	if err != nil {
		return nil, fmt.Errorf("load location %s: %w", Timezone, err)
	}
	return &Parser{loc: loc}, nil
}

// NewParserInLocation returns a Parser bound to loc.
func NewParserInLocation(loc *time.Location) *Parser {
	return &Parser{loc: loc}
}

// Location returns the zone slots are built in.
func (p *Parser) Location() *time.Location {
	return p.loc
}

// Parse reads "DD/MM/YYYY HH:MM". Tokens after the second are ignored.
// Errors are *errors.StandardError with code MALFORMED_INPUT or INVALID_DATETIME.
func (p *Parser) Parse(text string) (models.Interval, error) {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return models.Interval{}, errors.NewMalformedInputError("expected a date and a time separated by a space")
	}

	dateParts := strings.Split(tokens[0], "/")
	timeParts := strings.Split(tokens[1], ":")
	day, month, year := part(dateParts, 0), part(dateParts, 1), part(dateParts, 2)
	hour, minute := part(timeParts, 0), part(timeParts, 1)

	if day == "" || month == "" || year == "" || hour == "" || minute == "" {
		return models.Interval{}, errors.NewMalformedInputError(fmt.Sprintf("incomplete date/time %q", tokens[0]+" "+tokens[1]))
	}

	fields := make([]int, 5)
	for i, raw := range []string{year, month, day, hour, minute} {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return models.Interval{}, errors.NewInvalidDateTimeError(fmt.Sprintf("%q is not a number", raw))
		}
		fields[i] = n
	}
	y, mo, d, h, mi := fields[0], fields[1], fields[2], fields[3], fields[4]

	start := time.Date(y, time.Month(mo), d, h, mi, 0, 0, p.loc)

	// time.Date normalizes 31/04 into 01/05; a mismatch on the way back means
	// the input was never a real moment in this zone.
	if start.Year() != y || int(start.Month()) != mo || start.Day() != d ||
		start.Hour() != h || start.Minute() != mi {
		return models.Interval{}, errors.NewInvalidDateTimeError(
			fmt.Sprintf("%02d/%02d/%04d %02d:%02d does not exist in %s", d, mo, y, h, mi, p.loc))
	}

	return models.Interval{Start: start, End: start.Add(SlotDuration)}, nil
}

func part(parts []string, i int) string {
	if i >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[i])
}
