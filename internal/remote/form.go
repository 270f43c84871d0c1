package remote

import (
	"net/url"
	"strings"

	"github.com/tingwen/kplus-repair-uploader/internal/ledger"
)

// defaultFCode is submitted when a failure kind has no table entry.
const defaultFCode = "F111"

// fcodeByKind maps the human-readable failure kind to the short failure code
// the remote system indexes on. The table is fixed by the remote system's
// failure catalog.
var fcodeByKind = map[string]string{
	"accu/battery faulty":                              "F460",
	"adjustment knob faulty":                           "F520",
	"antenna faulty":                                   "F418",
	"ASIC/Gaterray faulty":                             "F302",
	"assembly fault":                                   "F295",
	"Backlight Inverter faulty":                        "F347",
	"bad solder joint":                                 "F210",
	"bad via":                                          "F205",
	"capacitor faulty":                                 "F370",
	"cause of failure not detected (tech./eco.)":       "F888",
	"component missing":                                "F220",
	"component sheared off":                            "F221",
	"connecting terminal not tightened":                "F553",
	"connection line interrupted/faulty":               "F550",
	"cover broken":                                     "F505",
	"diode faulty":                                     "F330",
	"display faulty":                                   "F345",
	"display wiring faulty":                            "F348",
	"EEPROM/FLASH faulty":                              "F304",
	"electrolytic capacitor faulty":                    "F371",
	"EPROM faulty":                                     "F303",
	"fuse faulty":                                      "F430",
	"heat sink mounting broken":                        "F515",
	"housing broken":                                   "F501",
	"IC faulty":                                        "F300",
	"insulation faulty":                                "F560",
	"label faulty":                                     "F235",
	"LED faulty":                                       "F340",
	"loos contact":                                     "F555",
	"membrane keyboard faulty":                         "F446",
	"Memory Card Slot faulty":                          "F579",
	"metal chips/whisker":                              "F272",
	"microprocessor faulty":                            "F301",
	"miscellaneous mechanical part missing/damaged":    "F590",
	"nut/screw faulty":                                 "F511",
	"operational amplifier faulty":                     "F306",
	"optical fibre faulty":                             "F580",
	"optocoupler faulty":                               "F350",
	"optoMOS-FET relay faulty":                         "F351",
	"plug/socket damaged":                              "F570",
	"potentiometer faulty":                             "F365",
	"printed circuit board faulty":                     "F491",
	"push button switch faulty":                        "F445",
	"quarz faulty":                                     "F390",
	"RAM faulty":                                       "F305",
	"rectifier faulty":                                 "F332",
	"relay coil electrically faulty":                   "F400",
	"resistor faulty":                                  "F360",
	"screw missing":                                    "F510",
	"short circuit - connection line":                  "F551",
	"short circuit - solder bridge":                    "F212",
	"short circuit at via":                             "F206",
	"slider in snap-on-mounting faulty":                "F504",
	"solder joint broken":                              "F281",
	"switch electrically faulty":                       "F441",
	"switch mechanically faulty":                       "F442",
	"thyristor faulty":                                 "F326",
	"touch sensor faulty":                              "F346",
	"transformer faulty":                               "F410",
	"transistor faulty":                                "F320",
	"triac faulty":                                     "F327",
	"varistor faulty":                                  "F368",
	"voltage regulator faulty":                         "F307",
	"voltage transformer/switching controller faulty":  "F308",
	"wrong assembly of component/wrong positioned":     "F250",
	"wrong component":                                  "F230",
	"wrong covering":                                   "F237",
	"wrong module packaging":                           "F130",
	"zener-/suppressor diode faulty":                   "F331",
}

// deriveFCode resolves the failure code submitted with a record: an explicit
// fcode wins; otherwise it is derived from the failure kind, with a generic
// default for kinds absent from the table.
func deriveFCode(failureKind, fcode string) string {
	if failureKind == "" || fcode != "" {
		return fcode
	}
	if code, ok := fcodeByKind[failureKind]; ok {
		return code
	}
	return defaultFCode
}

// itemsPayload builds the positional repaired-component payload: a fixed
// 14-slot template joined with "$$$" and wrapped in brackets. Slots 1-6 carry
// record data, the rest are constants the endpoint expects verbatim.
func itemsPayload(rec ledger.Record, fcode string) string {
	slots := []string{
		"",
		rec.ComponentLocation,
		rec.RepairComponentA5E,
		rec.Type,
		rec.FailureKind,
		fcode,
		rec.RepairAction,
		"", "0", "", "", "", "", "0",
	}
	return "[" + strings.Join(slots, "$$$") + "]"
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// buildSubmission merges the scraped form state with the new repair data.
// Fields the record carries always win; everything else — state tokens, unit
// identity, dates, costs — is round-tripped from the page unchanged so the
// server does not reject the post.
func buildSubmission(existing formValues, rec ledger.Record, uRequestID string) url.Values {
	fcode := deriveFCode(rec.FailureKind, rec.FCode)

	form := url.Values{}
	form.Set("isSubmit", "1")
	form.Set("OperationType", "save")

	// Anti-forgery state.
	form.Set("__VIEWSTATE", existing.value("__VIEWSTATE"))
	form.Set("__VIEWSTATEGENERATOR", existing.value("__VIEWSTATEGENERATOR"))
	form.Set("__EVENTVALIDATION", existing.value("__EVENTVALIDATION"))

	// Request identity, round-tripped.
	form.Set("RequestID", existing.value("txtRequestID"))
	form.Set("SEWCNoticificaionNo", existing.value("txtSEWCNoticificaionNo"))
	form.Set("OrderType", existing.value("txtOrderType"))
	form.Set("isRepeat", boolField(existing.check("chkisRepeat")))
	form.Set("TroubleDesc", existing.value("txtTroubleDesc"))

	// Unit identity, round-tripped.
	form.Set("WorkStationCode", existing.value("cboWorkStationCode"))
	form.Set("MLFB", existing.value("txtMLFB"))
	form.Set("SerialNo", existing.value("txtSerialNo"))
	form.Set("Qty", existing.value("txtQty"))
	form.Set("UpdatedSerialNo", existing.value("txtUpdatedSerialNo"))
	form.Set("UpdateSerialNo", boolField(existing.check("chkUpdateSerialNo")))
	form.Set("VSRNumber", existing.value("txtVSRNumber"))

	form.Set("FuntinalStateoriginal", existing.value("txtFuntinalStateoriginal"))
	form.Set("FuntinalStatelatest", existing.value("txtFuntinalStatelatest"))
	form.Set("Firmwareoriginal", existing.value("txtFirmwareoriginal"))
	form.Set("Firmwarelatest", existing.value("txtFirmwarelatest"))

	form.Set("Warranty", existing.value("cboWarranty"))
	form.Set("ServiceType", existing.value("cboServiceType"))
	form.Set("ConfirmCompleteDate", existing.value("dtpConfirmCompleteDate"))
	form.Set("EndRepairDate", existing.value("dtpEndRepairDate"))
	form.Set("LaborCost", existing.value("txtLaborCost"))
	form.Set("IsGoodWill", boolField(existing.check("chkIsGoodWill")))
	form.Set("GoodWillNo", existing.value("txtGoodWillNo"))

	// New repair data.
	form.Set("Items", itemsPayload(rec, fcode))
	form.Set("Remarks", rec.Remarks)
	form.Set("FailureDesc", existing.value("txtFailureDesc"))
	form.Set("RepairResult", rec.RepairResult)
	form.Set("FailureCasedType", rec.FailureCausedType)
	form.Set("Engineer", rec.Engineer)

	form.Set("PCBA5ENo", existing.value("txtPCBA5ENo"))
	form.Set("ComponentLocation", rec.ComponentLocation)
	form.Set("PCBA_FID", existing.value("txtPCBA_FID"))
	form.Set("RepairedComponentA5E", rec.RepairComponentA5E)
	form.Set("FailureType", rec.Type)
	form.Set("FCode", fcode)
	form.Set("RepairAction", rec.RepairAction)
	form.Set("RepairSN", existing.value("txtRepairSN"))
	form.Set("Bios", boolField(existing.check("chkBios")))

	form.Set("uRequestID", uRequestID)
	return form
}
