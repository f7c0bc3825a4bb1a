package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// coordinateRe matches degree/minute/hemisphere tokens from the station
// table, e.g. "44 54N" or "119 38W".
var coordinateRe = regexp.MustCompile(`^(\d+)\s+(\d+)([NSEW])$`)

// ParseCoordinate converts a "<degrees> <minutes><hemisphere>" token to signed
// decimal degrees. South and west are negative.
func ParseCoordinate(token string) (float64, error) {
	token = strings.TrimSpace(token)
	m := coordinateRe.FindStringSubmatch(token)
	if m == nil {
		return 0, &FormatError{Field: "coordinate", Value: token}
	}

	degrees, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &FormatError{Field: "coordinate", Value: token, Err: err}
	}
	minutes, err := strconv.Atoi(m[2])
	if err != nil || minutes >= 60 {
		return 0, &FormatError{Field: "coordinate", Value: token, Err: err}
	}

	decimal := float64(degrees) + float64(minutes)/60.0
	if m[3] == "S" || m[3] == "W" {
		decimal = -decimal
	}
	return decimal, nil
}
