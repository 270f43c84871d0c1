package ledger

import "strings"

// minFields is the number of comma-separated fields a line must carry to be
// a submittable record. Shorter lines are format errors and never reach the
// remote system.
const minFields = 13

// Record is one parsed repair record. Field positions are fixed by the
// capture tool that writes the ledger: the product FID leads, the next two
// slots are reserved (board FIDs and the failure-caused-type digit), and the
// remaining ten carry the repair data submitted to the remote form.
type Record struct {
	ProductFID         string
	FailureCausedType  string
	RepairResult       string
	Remarks            string
	ComponentLocation  string
	RepairComponentA5E string
	Type               string
	FailureKind        string
	FCode              string
	RepairAction       string
	Engineer           string
}

// ParseRecord splits a status-free ledger line into a Record. It reports
// false when the line has fewer than 13 fields; such lines are carried
// through the result set as format errors but never submitted.
func ParseRecord(line string) (Record, bool) {
	fields := splitFields(line)
	if len(fields) < minFields {
		return Record{}, false
	}
	return Record{
		ProductFID:         fields[0],
		FailureCausedType:  fields[3],
		RepairResult:       fields[4],
		Remarks:            fields[5],
		ComponentLocation:  fields[6],
		RepairComponentA5E: fields[7],
		Type:               fields[8],
		FailureKind:        fields[9],
		FCode:              fields[10],
		RepairAction:       fields[11],
		Engineer:           fields[12],
	}, true
}

// FirstField returns the leading comma-separated field of a line, trimmed.
// It is the display identity of a record even when the line is malformed.
func FirstField(line string) string {
	return splitFields(line)[0]
}

func splitFields(line string) []string {
	fields := strings.Split(line, ",")
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}
