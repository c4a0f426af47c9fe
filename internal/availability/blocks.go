package availability

import "time"

// ConflictsWithBlocks reports whether the slot [startMin, endMin) on date
// hits any blocked interval. Whole-day blocks conflict with everything on
// their date; recurring blocks match by weekday. This is the same rule
// FreeSlots applies, exposed so the appointment store can re-validate at
// write time.
func ConflictsWithBlocks(blocks []Block, date time.Time, startMin, endMin int) bool {
	dateKey := date.Format(DateFormat)
	weekday := date.Weekday()
	for _, b := range blocks {
		if !b.appliesTo(dateKey, weekday) {
			continue
		}
		if b.wholeDay() {
			return true
		}
		bStart, err := ParseClock(b.Start)
		if err != nil {
			continue
		}
		bEnd, err := ParseClock(b.End)
		if err != nil {
			continue
		}
		if Overlaps(bStart, bEnd, startMin, endMin, 0) {
			return true
		}
	}
	return false
}
