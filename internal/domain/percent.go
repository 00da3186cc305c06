package domain

import "strconv"

// Round rounds v to the given number of decimal places. Rounding is decided
// on the exact binary value of v, and exact halves go to the even digit, so
// Round(0.25, 1) is 0.2 and Round(2.675, 2) is 2.67 (2.675 is stored just below).
func Round(v float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// Percent returns part/whole*100 rounded to places. A non-positive whole yields 0.
func Percent(part, whole int64, places int) float64 {
	if whole <= 0 {
		return 0
	}
	return Round(float64(part)/float64(whole)*100, places)
}
