package remote

import (
	"regexp"
	"strings"
)

// The edit page is a classic WebForms page: every control lives under one
// content placeholder, and the anti-forgery state rides in hidden inputs that
// must be round-tripped unchanged. Extraction is a fixed registry of patterns
// matched against the newline-stripped page text; a field whose pattern does
// not match degrades to its zero value ("" or false) instead of failing, so a
// partially rendered page still produces a submittable form.

const controlPrefix = "ctl00_ContentPlaceHolder1_"

type fieldKind int

const (
	kindValue    fieldKind = iota // value="..." of an input
	kindTextarea                  // inner text of a textarea
	kindSelected                  // value of the selected option of a select
	kindCheckbox                  // presence of checked="checked"
)

type fieldPattern struct {
	name string
	kind fieldKind
	re   *regexp.Regexp
}

func hiddenField(name string) fieldPattern {
	return fieldPattern{name, kindValue, regexp.MustCompile(`name="` + name + `"[^>]*value="([^"]*)"`)}
}

func inputField(name string) fieldPattern {
	return fieldPattern{name, kindValue, regexp.MustCompile(`id="` + controlPrefix + name + `"[^>]*value="([^"]*)"`)}
}

func textareaField(name string) fieldPattern {
	return fieldPattern{name, kindTextarea, regexp.MustCompile(`id="` + controlPrefix + name + `"[^>]*>([^<]*)</textarea>`)}
}

func selectField(name string) fieldPattern {
	return fieldPattern{name, kindSelected, regexp.MustCompile(`id="` + controlPrefix + name + `"[^>]*>.*?<option[^>]*selected="selected"[^>]*value="([^"]*)"`)}
}

func checkboxField(name string) fieldPattern {
	return fieldPattern{name, kindCheckbox, regexp.MustCompile(`id="` + controlPrefix + name + `"[^>]*checked="checked"`)}
}

// rawIDField matches controls rendered outside the placeholder naming scheme.
func rawIDField(name string, kind fieldKind) fieldPattern {
	if kind == kindCheckbox {
		return fieldPattern{name, kind, regexp.MustCompile(`id="` + name + `"[^>]*checked="checked"`)}
	}
	return fieldPattern{name, kind, regexp.MustCompile(`id="` + name + `"[^>]*value="([^"]*)"`)}
}

// fieldRegistry is the full set of form controls the submission round-trips.
var fieldRegistry = []fieldPattern{
	// WebForms anti-forgery / state tokens.
	hiddenField("__VIEWSTATE"),
	hiddenField("__VIEWSTATEGENERATOR"),
	hiddenField("__EVENTVALIDATION"),

	// Request identity block.
	inputField("txtRequestID"),
	inputField("txtSEWCNoticificaionNo"),
	inputField("txtOrderType"),
	checkboxField("chkisRepeat"),
	textareaField("txtTroubleDesc"),

	// Unit identity.
	selectField("cboWorkStationCode"),
	inputField("txtMLFB"),
	inputField("txtSerialNo"),
	inputField("txtQty"),
	inputField("txtUpdatedSerialNo"),
	checkboxField("chkUpdateSerialNo"),
	inputField("txtVSRNumber"),

	// Firmware / functional state.
	inputField("txtFuntinalStateoriginal"),
	inputField("txtFuntinalStatelatest"),
	inputField("txtFirmwareoriginal"),
	inputField("txtFirmwarelatest"),

	// Service conditions.
	selectField("cboWarranty"),
	selectField("cboServiceType"),
	selectField("cboEngineer"),
	selectField("cboFailureCasedType"),
	selectField("cboRepairResult"),

	// Dates and cost.
	inputField("dtpConfirmCompleteDate"),
	inputField("dtpEndRepairDate"),
	inputField("txtLaborCost"),
	checkboxField("chkIsGoodWill"),
	inputField("txtGoodWillNo"),

	// Free text.
	textareaField("txtRemarks"),
	textareaField("txtFailureDesc"),

	// Repaired-component block.
	inputField("txtPCBA5ENo"),
	inputField("txtComponentLocation"),
	inputField("txtPCBA_FID"),
	inputField("txtRepairedComponentA5E"),
	selectField("cboFailureType"),
	inputField("txtFCode"),
	selectField("cboRepairAction"),
	rawIDField("txtRepairSN", kindValue),
	rawIDField("chkBios", kindCheckbox),
}

// formValues holds the current server-side state of the edit form. Text-ish
// controls default to "" and checkboxes to false when absent from the page.
type formValues struct {
	values map[string]string
	checks map[string]bool
}

func (v formValues) value(name string) string { return v.values[name] }
func (v formValues) check(name string) bool   { return v.checks[name] }

var newlineStripper = strings.NewReplacer("\n", "", "\r", "")

// extractFormFields scrapes the registry out of raw page text. It never
// fails: a missing field yields its default.
func extractFormFields(page string) formValues {
	clean := newlineStripper.Replace(page)
	out := formValues{
		values: make(map[string]string, len(fieldRegistry)),
		checks: make(map[string]bool, 4),
	}

	for _, fp := range fieldRegistry {
		if fp.kind == kindCheckbox {
			out.checks[fp.name] = fp.re.MatchString(clean)
			continue
		}
		if m := fp.re.FindStringSubmatch(clean); m != nil {
			out.values[fp.name] = strings.TrimSpace(m[1])
		} else {
			out.values[fp.name] = ""
		}
	}
	return out
}
