package batch

// failureKindsByType lists the selectable failure kinds for each
// failure-caused type. The keys are the type digits used throughout the
// repair system.
var failureKindsByType = map[string][]string{
	"0": {"no fault detected"},
	"1": {
		"accu/battery faulty", "adjustment knob faulty", "antenna faulty", "ASIC/Gaterray faulty",
		"assembly fault", "Backlight Inverter faulty", "bad solder joint", "bad via", "capacitor faulty",
		"cause of failure not detected (tech./eco.)", "component missing", "component sheared off",
		"connecting terminal not tightened", "connection line interrupted/faulty", "cover broken",
		"diode faulty", "display faulty", "display wiring faulty", "EEPROM/FLASH faulty",
		"electrolytic capacitor faulty", "EPROM faulty", "fuse faulty", "heat sink mounting broken",
		"housing broken", "IC faulty", "insulation faulty", "label faulty", "LED faulty", "loos contact",
		"membrane keyboard faulty", "Memory Card Slot faulty", "metal chips/whisker", "microprocessor faulty",
		"miscellaneous mechanical part missing/damaged", "nut/screw faulty", "operational amplifier faulty",
		"optical fibre faulty", "optocoupler faulty", "optoMOS-FET relay faulty", "plug/socket damaged",
		"potentiometer faulty", "printed circuit board faulty", "push button switch faulty", "quarz faulty",
		"RAM faulty", "rectifier faulty", "relay coil electrically faulty", "resistor faulty", "screw missing",
		"short circuit - connection line", "short circuit - solder bridge", "short circuit at via",
		"slider in snap-on-mounting faulty", "solder joint broken", "switch electrically faulty",
		"switch mechanically faulty", "thyristor faulty", "touch sensor faulty", "transformer faulty",
		"transistor faulty", "triac faulty", "varistor faulty", "voltage regulator faulty",
		"voltage transformer/switching controller faulty", "wrong assembly of component/wrong positioned",
		"wrong component", "wrong covering", "wrong module packaging", "zener-/suppressor diode faulty",
	},
	"2": {
		"corrosion - humidity", "corrosion - silver sulfide/corrosive gase",
		"damaged by shock/drop", "device scratched", "device soiled",
		"foreign body in device", "manipulation by third party", "overload",
		"overvoltage", "scorched/melted",
	},
	"3": {
		"no start up-FW-Update solves problem", "upgrading A-A1 - HW",
		"upgrading A-A1 - SW",
	},
	"4": {"transport damage"},
}

// fcodeByKind maps every known failure kind to its F-code, across all
// failure-caused types.
var fcodeByKind = map[string]string{
	"no fault detected": "F000",

	"accu/battery faulty": "F460", "adjustment knob faulty": "F520", "antenna faulty": "F418",
	"ASIC/Gaterray faulty": "F302", "assembly fault": "F295", "Backlight Inverter faulty": "F347",
	"bad solder joint": "F210", "bad via": "F205", "capacitor faulty": "F370",
	"cause of failure not detected (tech./eco.)": "F888", "component missing": "F220",
	"component sheared off": "F221", "connecting terminal not tightened": "F553",
	"connection line interrupted/faulty": "F550", "cover broken": "F505", "diode faulty": "F330",
	"display faulty": "F345", "display wiring faulty": "F348", "EEPROM/FLASH faulty": "F304",
	"electrolytic capacitor faulty": "F371", "EPROM faulty": "F303", "fuse faulty": "F430",
	"heat sink mounting broken": "F515", "housing broken": "F501", "IC faulty": "F300",
	"insulation faulty": "F560", "label faulty": "F235", "LED faulty": "F340", "loos contact": "F555",
	"membrane keyboard faulty": "F446", "Memory Card Slot faulty": "F579", "metal chips/whisker": "F272",
	"microprocessor faulty": "F301", "miscellaneous mechanical part missing/damaged": "F590",
	"nut/screw faulty": "F511", "operational amplifier faulty": "F306", "optical fibre faulty": "F580",
	"optocoupler faulty": "F350", "optoMOS-FET relay faulty": "F351", "plug/socket damaged": "F570",
	"potentiometer faulty": "F365", "printed circuit board faulty": "F491", "push button switch faulty": "F445",
	"quarz faulty": "F390", "RAM faulty": "F305", "rectifier faulty": "F332",
	"relay coil electrically faulty": "F400", "resistor faulty": "F360", "screw missing": "F510",
	"short circuit - connection line": "F551", "short circuit - solder bridge": "F212",
	"short circuit at via": "F206", "slider in snap-on-mounting faulty": "F504", "solder joint broken": "F281",
	"switch electrically faulty": "F441", "switch mechanically faulty": "F442", "thyristor faulty": "F326",
	"touch sensor faulty": "F346", "transformer faulty": "F410", "transistor faulty": "F320",
	"triac faulty": "F327", "varistor faulty": "F368", "voltage regulator faulty": "F307",
	"voltage transformer/switching controller faulty": "F308",
	"wrong assembly of component/wrong positioned":   "F250", "wrong component": "F230",
	"wrong covering": "F237", "wrong module packaging": "F130", "zener-/suppressor diode faulty": "F331",

	"corrosion - humidity": "F930", "corrosion - silver sulfide/corrosive gase": "F939",
	"damaged by shock/drop": "F950", "device scratched": "F992", "device soiled": "F990",
	"foreign body in device": "F995", "manipulation by third party": "F910", "overload": "F921",
	"overvoltage": "F920", "scorched/melted": "F922",

	"no start up-FW-Update solves problem": "F688", "upgrading A-A1 - HW": "F710",
	"upgrading A-A1 - SW": "F720",

	"transport damage": "X009",
}

// Preset is the field prefill applied when an engineer picks a
// failure-caused type.
type Preset struct {
	Type               string
	FailureKind        string
	FCode              string
	Remarks            string
	ComponentLocation  string
	RepairComponentA5E string
}

var presetsByType = map[string]Preset{
	"0": {
		Type: "General no defect", FailureKind: "no fault detected", FCode: "F000",
		Remarks: "NA", ComponentLocation: "NA", RepairComponentA5E: "NA",
	},
	"1": {Type: "General component or process", FCode: "F111"},
	"2": {Type: "External overstress", FCode: "F222"},
	"3": {Type: "General software or design", FCode: "F333"},
	"4": {Type: "Special case", FailureKind: "transport damage", FCode: "X009"},
}

// FailureKinds returns the failure kinds selectable for a failure-caused
// type digit.
func FailureKinds(causedType string) ([]string, bool) {
	kinds, ok := failureKindsByType[causedType]
	return kinds, ok
}

// FCodeFor looks up the F-code assigned to a failure kind.
func FCodeFor(failureKind string) (string, bool) {
	fcode, ok := fcodeByKind[failureKind]
	return fcode, ok
}

// PresetFor returns the prefill for a failure-caused type digit.
func PresetFor(causedType string) (Preset, bool) {
	p, ok := presetsByType[causedType]
	return p, ok
}
