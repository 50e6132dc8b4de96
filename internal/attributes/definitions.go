package attributes

// Path prefixes into a single vehicle object.
const (
	pTechData       = "godkjenning.tekniskGodkjenning.tekniskeData"
	pGeneral        = pTechData + ".generelt"
	pBody           = pTechData + ".karosseriOgLasteplan"
	pClassification = "godkjenning.tekniskGodkjenning.kjoretoyklassifisering"
	pFirstApproval  = "godkjenning.forstegangsGodkjenning"
	pDrivetrain     = pTechData + ".motorOgDrivverk"
	pMotor          = pDrivetrain + ".motor[0]"
	pFuel           = pMotor + ".drivstoff[0]"
	pWeights        = pTechData + ".vekter"
	pDimensions     = pTechData + ".dimensjoner"
	pPersons        = pTechData + ".persontall"
	pEnvironment    = pTechData + ".miljodata"
	pFuelGroup      = pEnvironment + ".miljoOgdrivstoffGruppe[0]"
	pConsumption    = pFuelGroup + ".forbrukOgUtslipp[0]"
	pWLTP           = pConsumption + ".wltpKjoretoyspesifikk"
	pNoise          = pFuelGroup + ".lyd"
	pBrakes         = pTechData + ".bremser"
	pAxles          = pTechData + ".akslinger"
)

var supported = []Definition{
	// Identity
	{Key: "registration_number", Name: "Registration Number", Path: mustParse("kjoretoyId.kjennemerke"), Icon: "mdi:card-text", EnabledDefault: true, Category: CategoryIdentity},
	{Key: "chassis_number", Name: "Chassis Number (VIN)", Path: mustParse("kjoretoyId.understellsnummer"), Icon: "mdi:identifier", EnabledDefault: true, Category: CategoryIdentity},

	// General / Description
	{Key: "make", Name: "Make", Path: mustParse(pGeneral + ".merke[0].merke"), Icon: "mdi:car", EnabledDefault: true, Category: CategoryGeneral},
	{Key: "make_code", Name: "Make Code", Path: mustParse(pGeneral + ".merke[0].merkeKode"), Icon: "mdi:barcode", Category: CategoryGeneral},
	{Key: "model", Name: "Model", Path: mustParse(pGeneral + ".handelsbetegnelse[0]"), Icon: "mdi:car-info", EnabledDefault: true, Category: CategoryGeneral},
	{Key: "type_designation", Name: "Type Designation", Path: mustParse(pGeneral + ".typebetegnelse"), Icon: "mdi:tag", Category: CategoryGeneral},
	{Key: "manufacturer_name", Name: "Manufacturer Name", Path: mustParse(pGeneral + ".fabrikant[0].fabrikantNavn"), Icon: "mdi:factory", Category: CategoryGeneral},
	{Key: "color", Name: "Color", Path: mustParse(pBody + ".rFarge[0].kodeNavn"), Icon: "mdi:palette", EnabledDefault: true, Category: CategoryGeneral},
	{Key: "body_type", Name: "Body Type", Path: mustParse(pBody + ".karosseritype.kodeNavn"), Icon: "mdi:car-side", EnabledDefault: true, Category: CategoryGeneral},
	{Key: "body_art", Name: "Body Art", Path: mustParse(pBody + ".karosseriArt"), Icon: "mdi:car-side", Category: CategoryGeneral},
	{Key: "steering_side", Name: "Steering Side", Path: mustParse(pBody + ".kjoringSide"), Icon: "mdi:steering", EnabledDefault: true, Category: CategoryGeneral},
	{Key: "num_doors", Name: "Number of Doors", Path: mustParse(pBody + ".antallDorer[0]"), Icon: "mdi:car-door", EnabledDefault: true, Category: CategoryGeneral},
	{Key: "bus_category", Name: "Bus Category", Path: mustParse(pBody + ".bussKategori"), Icon: "mdi:bus", Category: CategoryGeneral},

	// Classification
	{Key: "vehicle_group", Name: "Vehicle Group", Path: mustParse(pClassification + ".beskrivelse"), Icon: "mdi:shape", EnabledDefault: true, Category: CategoryClassification},
	{Key: "vehicle_category_code", Name: "Vehicle Category Code", Path: mustParse(pClassification + ".tekniskKode.kodeVerdi"), Icon: "mdi:code-tags", Category: CategoryClassification},
	{Key: "vehicle_subcategory_code", Name: "Vehicle Subcategory Code", Path: mustParse(pClassification + ".tekniskUnderkode.kodeVerdi"), Icon: "mdi:code-tags", Category: CategoryClassification},
	{Key: "vehicle_tax_code", Name: "Vehicle Tax Code", Path: mustParse(pClassification + ".kjoretoyAvgiftsKode.kodeVerdi"), Icon: "mdi:cash", Category: CategoryClassification},
	{Key: "special_characteristics", Name: "Special Characteristics", Path: mustParse(pClassification + ".spesielleKjennetegn"), Icon: "mdi:star", Category: CategoryClassification},
	{Key: "type_approval_conformity", Name: "Type Approval Conformity", Path: mustParse(pClassification + ".iSamsvarMedTypegodkjenning"), Icon: "mdi:check-decagram", Category: CategoryClassification},
	{Key: "ef_type_approval_number", Name: "EF Type Approval Number", Path: mustParse(pClassification + ".efTypegodkjenning.typegodkjenningNrTekst"), Icon: "mdi:certificate", Category: CategoryClassification},

	// Registration & Status
	{Key: "registration_status", Name: "Registration Status", Path: mustParse("registrering.registreringsstatus.kodeNavn"), Icon: "mdi:check-circle", EnabledDefault: true, Category: CategoryRegistration},
	{Key: "first_registration_date", Name: "First Registration Date", Path: mustParse("forstegangsregistrering.registrertForstegangNorgeDato"), Icon: "mdi:calendar", EnabledDefault: true, Category: CategoryRegistration},
	{Key: "first_technical_approval_date", Name: "First Technical Approval Date", Path: mustParse(pFirstApproval + ".forstegangRegistrertDato"), Icon: "mdi:calendar-check", Category: CategoryRegistration},
	{Key: "driving_purpose", Name: "Driving Purpose", Path: mustParse("registrering.kjoringensArt.kodeNavn"), Icon: "mdi:road-variant", Category: CategoryRegistration},
	{Key: "industry_code_description", Name: "Industry Code Description", Path: mustParse("registrering.neringskodeBeskrivelse"), Icon: "mdi:domain", Category: CategoryRegistration},
	{Key: "deregistered_since_date", Name: "Deregistered Since Date", Path: mustParse("registrering.avregistrertSidenDato"), Icon: "mdi:calendar-remove", Category: CategoryRegistration},

	// Import
	{Key: "import_country", Name: "Import Country", Path: mustParse(pFirstApproval + ".bruktimport.importland.landNavn"), Icon: "mdi:earth", Category: CategoryImport},
	{Key: "odometer_at_import", Name: "Odometer at Import", Path: mustParse(pFirstApproval + ".bruktimport.kilometerstand"), Icon: "mdi:counter", Unit: "km", Category: CategoryImport},
	{Key: "previous_foreign_plate", Name: "Previous Foreign Plate", Path: mustParse(pFirstApproval + ".bruktimport.tidligereUtenlandskKjennemerke"), Icon: "mdi:card-text-outline", Category: CategoryImport},

	// Engine & Drivetrain
	{Key: "num_cylinders", Name: "Number of Cylinders", Path: mustParse(pMotor + ".antallSylindre"), Icon: "mdi:numeric", Category: CategoryEngine},
	{Key: "displacement_cc", Name: "Engine Displacement", Path: mustParse(pMotor + ".slagvolum"), Icon: "mdi:engine-outline", Unit: "cm³", Category: CategoryEngine},
	{Key: "engine_code", Name: "Engine Code", Path: mustParse(pMotor + ".motorKode"), Icon: "mdi:engine", Category: CategoryEngine},
	{Key: "engine_working_principle", Name: "Engine Working Principle", Path: mustParse(pMotor + ".arbeidsprinsipp.kodeNavn"), Icon: "mdi:engine", EnabledDefault: true, Category: CategoryEngine},
	{Key: "cylinder_arrangement", Name: "Cylinder Arrangement", Path: mustParse(pMotor + ".sylinderArrangement.kodeNavn"), Icon: "mdi:cylinder", Category: CategoryEngine},
	{Key: "supercharged", Name: "Supercharged (Turbo)", Path: mustParse(pMotor + ".overladet"), Icon: "mdi:turbine", Category: CategoryEngine},
	{Key: "catalytic_converter", Name: "Catalytic Converter", Path: mustParse(pMotor + ".katalysator"), Icon: "mdi:filter", Category: CategoryEngine},
	{Key: "motor_fuel_type", Name: "Motor Fuel Type", Path: mustParse(pFuel + ".drivstoffKode.kodeNavn"), Icon: "mdi:fuel", EnabledDefault: true, Category: CategoryEngine},
	{Key: "engine_power_kw", Name: "Engine Power", Path: mustParse(pFuel + ".maksNettoEffekt"), Icon: "mdi:flash", Unit: "kW", EnabledDefault: true, Category: CategoryEngine},
	{Key: "max_power_at_rpm", Name: "Max Power at RPM", Path: mustParse(pFuel + ".maksNettoEffektVedOmdreiningstallMin1"), Icon: "mdi:gauge", Unit: "rpm", Category: CategoryEngine},
	{Key: "max_rpm", Name: "Max RPM", Path: mustParse(pFuel + ".maksOmdreining"), Icon: "mdi:gauge", Unit: "rpm", Category: CategoryEngine},
	{Key: "voltage", Name: "Voltage", Path: mustParse(pFuel + ".spenning"), Icon: "mdi:lightning-bolt", Unit: "V", Category: CategoryEngine},
	{Key: "gearbox_type", Name: "Gearbox Type", Path: mustParse(pDrivetrain + ".girkassetype.kodeNavn"), Icon: "mdi:car-shift-pattern", Category: CategoryEngine},
	{Key: "num_gears", Name: "Number of Gears", Path: mustParse(pDrivetrain + ".antallGir"), Icon: "mdi:numeric", Category: CategoryEngine},
	{Key: "num_reverse_gears", Name: "Number of Reverse Gears", Path: mustParse(pDrivetrain + ".antallGirBakover"), Icon: "mdi:numeric", Category: CategoryEngine},
	{Key: "hybrid_electric_vehicle", Name: "Hybrid Electric Vehicle", Path: mustParse(pDrivetrain + ".hybridElektriskKjoretoy"), Icon: "mdi:car-electric", Category: CategoryEngine},
	{Key: "hybrid_category", Name: "Hybrid Category", Path: mustParse(pDrivetrain + ".hybridKategori.kodeNavn"), Icon: "mdi:car-electric", Category: CategoryEngine},
	{Key: "exclusively_electric_drive", Name: "Exclusively Electric Drive", Path: mustParse(pDrivetrain + ".utelukkendeElektriskDrift"), Icon: "mdi:ev-station", Category: CategoryEngine},
	{Key: "max_speed", Name: "Max Speed", Path: mustParse(pDrivetrain + ".maksimumHastighet[0]"), Icon: "mdi:speedometer", Unit: "km/h", Category: CategoryEngine},
	{Key: "max_speed_measured", Name: "Max Speed (Measured)", Path: mustParse(pDrivetrain + ".maksimumHastighetMalt[0]"), Icon: "mdi:speedometer", Unit: "km/h", Category: CategoryEngine},
	{Key: "obd_equipped", Name: "OBD Equipped", Path: mustParse(pDrivetrain + ".obd"), Icon: "mdi:car-wrench", Category: CategoryEngine},

	// Weights
	{Key: "curb_weight", Name: "Curb Weight", Path: mustParse(pWeights + ".egenvekt"), Icon: "mdi:weight-kilogram", Unit: "kg", Category: CategoryWeights},
	{Key: "curb_weight_min", Name: "Curb Weight (Min)", Path: mustParse(pWeights + ".egenvektMinimum"), Icon: "mdi:weight-kilogram", Unit: "kg", Category: CategoryWeights},
	{Key: "curb_weight_max", Name: "Curb Weight (Max)", Path: mustParse(pWeights + ".egenvektMaksimum"), Icon: "mdi:weight-kilogram", Unit: "kg", Category: CategoryWeights},
	{Key: "gross_weight", Name: "Permitted Total Weight", Path: mustParse(pWeights + ".tillattTotalvekt"), Icon: "mdi:weight-kilogram", Unit: "kg", Category: CategoryWeights},
	{Key: "technical_gross_weight", Name: "Technical Total Weight", Path: mustParse(pWeights + ".tekniskTillattTotalvekt"), Icon: "mdi:weight-kilogram", Unit: "kg", Category: CategoryWeights},
	{Key: "technical_gross_weight_road", Name: "Technical Total Weight (Road)", Path: mustParse(pWeights + ".tekniskTillattTotalvektVeg"), Icon: "mdi:weight-kilogram", Unit: "kg", Category: CategoryWeights},
	{Key: "payload", Name: "Payload", Path: mustParse(pWeights + ".nyttelast"), Icon: "mdi:weight-kilogram", Unit: "kg", EnabledDefault: true, Category: CategoryWeights},
	{Key: "trailer_weight_braked", Name: "Trailer Weight (Braked)", Path: mustParse(pWeights + ".tillattTilhengervektMedBrems"), Icon: "mdi:tow-truck", Unit: "kg", EnabledDefault: true, Category: CategoryWeights},
	{Key: "trailer_weight_unbraked", Name: "Trailer Weight (Unbraked)", Path: mustParse(pWeights + ".tillattTilhengervektUtenBrems"), Icon: "mdi:tow-truck", Unit: "kg", EnabledDefault: true, Category: CategoryWeights},
	{Key: "roof_load", Name: "Permitted Roof Load", Path: mustParse(pWeights + ".tillattTaklast"), Icon: "mdi:arrow-up-box", Unit: "kg", Category: CategoryWeights},
	{Key: "vertical_coupling_load", Name: "Vertical Coupling Load", Path: mustParse(pWeights + ".tillattVertikalKoplingslast"), Icon: "mdi:arrow-down-box", Unit: "kg", Category: CategoryWeights},
	{Key: "train_weight", Name: "Permitted Train Weight", Path: mustParse(pWeights + ".tillattVogntogvekt"), Icon: "mdi:train-car", Unit: "kg", Category: CategoryWeights},
	{Key: "train_weight_road", Name: "Permitted Train Weight (Road)", Path: mustParse(pWeights + ".tillattVogntogvektVeg"), Icon: "mdi:train-car", Unit: "kg", Category: CategoryWeights},

	// Dimensions
	{Key: "length_mm", Name: "Length", Path: mustParse(pDimensions + ".lengde"), Icon: "mdi:ruler", Unit: "mm", EnabledDefault: true, Category: CategoryDimensions},
	{Key: "width_mm", Name: "Width", Path: mustParse(pDimensions + ".bredde"), Icon: "mdi:ruler", Unit: "mm", EnabledDefault: true, Category: CategoryDimensions},
	{Key: "height_mm", Name: "Height", Path: mustParse(pDimensions + ".hoyde"), Icon: "mdi:ruler", Unit: "mm", EnabledDefault: true, Category: CategoryDimensions},

	// Persons / Seats
	{Key: "num_seats", Name: "Number of Seats", Path: mustParse(pPersons + ".sitteplasserTotalt"), Icon: "mdi:car-seat", EnabledDefault: true, Category: CategorySeats},
	{Key: "front_seats", Name: "Front Seats", Path: mustParse(pPersons + ".sitteplasserForan"), Icon: "mdi:car-seat", EnabledDefault: true, Category: CategorySeats},
	{Key: "standing_places", Name: "Standing Places", Path: mustParse(pPersons + ".staplasser"), Icon: "mdi:human-handsup", Category: CategorySeats},
	{Key: "wheelchair_places", Name: "Wheelchair Places", Path: mustParse(pPersons + ".rullestolplasser"), Icon: "mdi:wheelchair-accessibility", Category: CategorySeats},

	// Environment & Fuel
	{Key: "fuel_type", Name: "Fuel Type", Path: mustParse(pFuelGroup + ".drivstoffKodeMiljodata.kodeNavn"), Icon: "mdi:fuel", EnabledDefault: true, Category: CategoryEnvironment},
	{Key: "euro_class", Name: "Euro Emission Class", Path: mustParse(pEnvironment + ".euroKlasse.kodeNavn"), Icon: "mdi:leaf", Category: CategoryEnvironment},
	{Key: "eco_innovation", Name: "Eco Innovation", Path: mustParse(pEnvironment + ".okoInnovasjon"), Icon: "mdi:leaf-circle", Category: CategoryEnvironment},

	// Emissions & Consumption (NEDC)
	{Key: "nedc_co2_combined", Name: "CO₂ Combined (NEDC)", Path: mustParse(pConsumption + ".co2BlandetKjoring"), Icon: "mdi:molecule-co2", Unit: "g/km", Category: CategoryNEDC},
	{Key: "nedc_co2_city", Name: "CO₂ City (NEDC)", Path: mustParse(pConsumption + ".co2Bykjoring"), Icon: "mdi:molecule-co2", Unit: "g/km", Category: CategoryNEDC},
	{Key: "nedc_co2_highway", Name: "CO₂ Highway (NEDC)", Path: mustParse(pConsumption + ".co2Landeveiskjoring"), Icon: "mdi:molecule-co2", Unit: "g/km", Category: CategoryNEDC},
	{Key: "nedc_fuel_combined", Name: "Fuel Consumption Combined (NEDC)", Path: mustParse(pConsumption + ".forbrukBlandetKjoring"), Icon: "mdi:gas-station", Unit: "l/100km", Category: CategoryNEDC},
	{Key: "nedc_fuel_city", Name: "Fuel Consumption City (NEDC)", Path: mustParse(pConsumption + ".forbrukBykjoring"), Icon: "mdi:gas-station", Unit: "l/100km", Category: CategoryNEDC},
	{Key: "nedc_fuel_highway", Name: "Fuel Consumption Highway (NEDC)", Path: mustParse(pConsumption + ".forbrukLandeveiskjoring"), Icon: "mdi:gas-station", Unit: "l/100km", Category: CategoryNEDC},
	{Key: "nox_mg_per_km", Name: "NOx Emissions", Path: mustParse(pConsumption + ".utslippNOxMgPrKm"), Icon: "mdi:smog", Unit: "mg/km", Category: CategoryNEDC},
	{Key: "particles_mg_per_km", Name: "Particle Emissions", Path: mustParse(pConsumption + ".utslippPartiklerMgPrKm"), Icon: "mdi:blur", Unit: "mg/km", Category: CategoryNEDC},
	{Key: "nedc_electric_range", Name: "Electric Range (NEDC)", Path: mustParse(pConsumption + ".rekkeviddeKm"), Icon: "mdi:ev-station", Unit: "km", Category: CategoryNEDC},
	{Key: "nedc_el_energy_consumption", Name: "El. Energy Consumption (NEDC)", Path: mustParse(pConsumption + ".elEnergiforbruk"), Icon: "mdi:lightning-bolt", Unit: "Wh/km", Category: CategoryNEDC},
	{Key: "particle_filter_factory", Name: "Particle Filter (Factory-fitted)", Path: mustParse(pConsumption + ".partikkelfilterFabrikkmontert"), Icon: "mdi:filter", Category: CategoryNEDC},

	// Emissions & Consumption (WLTP)
	{Key: "wltp_co2_combined", Name: "CO₂ Combined (WLTP)", Path: mustParse(pWLTP + ".co2Kombinert"), Icon: "mdi:molecule-co2", Unit: "g/km", Category: CategoryWLTP},
	{Key: "wltp_co2_low", Name: "CO₂ Low (WLTP)", Path: mustParse(pWLTP + ".co2Lav"), Icon: "mdi:molecule-co2", Unit: "g/km", Category: CategoryWLTP},
	{Key: "wltp_co2_medium", Name: "CO₂ Medium (WLTP)", Path: mustParse(pWLTP + ".co2Middels"), Icon: "mdi:molecule-co2", Unit: "g/km", Category: CategoryWLTP},
	{Key: "wltp_co2_high", Name: "CO₂ High (WLTP)", Path: mustParse(pWLTP + ".co2Hoy"), Icon: "mdi:molecule-co2", Unit: "g/km", Category: CategoryWLTP},
	{Key: "wltp_co2_extra_high", Name: "CO₂ Extra High (WLTP)", Path: mustParse(pWLTP + ".co2EkstraHoy"), Icon: "mdi:molecule-co2", Unit: "g/km", Category: CategoryWLTP},
	{Key: "wltp_co2_weighted_combined", Name: "CO₂ Weighted Combined (WLTP)", Path: mustParse(pWLTP + ".co2VektetKombinert"), Icon: "mdi:molecule-co2", Unit: "g/km", Category: CategoryWLTP},
	{Key: "wltp_fuel_combined", Name: "Fuel Consumption Combined (WLTP)", Path: mustParse(pWLTP + ".forbrukKombinert"), Icon: "mdi:gas-station", Unit: "l/100km", Category: CategoryWLTP},
	{Key: "wltp_fuel_low", Name: "Fuel Consumption Low (WLTP)", Path: mustParse(pWLTP + ".forbrukLav"), Icon: "mdi:gas-station", Unit: "l/100km", Category: CategoryWLTP},
	{Key: "wltp_fuel_high", Name: "Fuel Consumption High (WLTP)", Path: mustParse(pWLTP + ".forbrukHoy"), Icon: "mdi:gas-station", Unit: "l/100km", Category: CategoryWLTP},
	{Key: "wltp_fuel_weighted_combined", Name: "Fuel Consumption Weighted Combined (WLTP)", Path: mustParse(pWLTP + ".forbrukVektetKombinert"), Icon: "mdi:gas-station", Unit: "l/100km", Category: CategoryWLTP},
	{Key: "wltp_electric_range_mixed", Name: "Electric Range Mixed (WLTP)", Path: mustParse(pWLTP + ".rekkeviddeKmBlandetkjoring"), Icon: "mdi:ev-station", Unit: "km", Category: CategoryWLTP},
	{Key: "wltp_electric_range_city", Name: "Electric Range City (WLTP)", Path: mustParse(pWLTP + ".rekkeviddeKmBykjoring"), Icon: "mdi:ev-station", Unit: "km", Category: CategoryWLTP},
	{Key: "wltp_el_energy_consumption", Name: "El. Energy Consumption (WLTP)", Path: mustParse(pWLTP + ".elEnergiforbruk"), Icon: "mdi:lightning-bolt", Unit: "Wh/km", Category: CategoryWLTP},

	// Noise
	{Key: "noise_driving", Name: "Driving Noise", Path: mustParse(pNoise + ".kjorestoy"), Icon: "mdi:volume-high", Unit: "dB", Category: CategoryNoise},
	{Key: "noise_stationary", Name: "Stationary Noise", Path: mustParse(pNoise + ".standstoy"), Icon: "mdi:volume-medium", Unit: "dB", Category: CategoryNoise},
	{Key: "noise_interior", Name: "Interior Noise", Path: mustParse(pNoise + ".innvendigStoyniva"), Icon: "mdi:volume-low", Unit: "dB", Category: CategoryNoise},

	// Brakes & Axles
	{Key: "abs", Name: "ABS", Path: mustParse(pBrakes + ".abs"), Icon: "mdi:car-brake-abs", Category: CategoryBrakes},
	{Key: "brake_system", Name: "Brake System", Path: mustParse(pBrakes + ".bremsesystem"), Icon: "mdi:car-brake-alert", Category: CategoryBrakes},
	{Key: "num_axles", Name: "Number of Axles", Path: mustParse(pAxles + ".antallAksler"), Icon: "mdi:axes", Category: CategoryBrakes},

	// Periodic Inspection
	{Key: "next_inspection_date", Name: "Next Inspection Date", Path: mustParse("periodiskKjoretoyKontroll.kontrollfrist"), Icon: "mdi:calendar-clock", EnabledDefault: true, Category: CategoryInspection},
	{Key: "last_inspection_date", Name: "Last Inspection Date", Path: mustParse("periodiskKjoretoyKontroll.sistGodkjent"), Icon: "mdi:calendar-check", Category: CategoryInspection},

	// Remarks
	{Key: "vehicle_remarks", Name: "Vehicle Remarks", Path: mustParse("godkjenning.kjoretoymerknad[0].merknad"), Icon: "mdi:comment-text", Category: CategoryRemarks},
}
