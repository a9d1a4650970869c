package config

// defaultConfigs holds the built-in per-satellite Config used when the CLI
// is invoked with --satellite instead of --config. Every JPSS spacecraft
// shares the same product/APID layout and mission base time; only the
// spacecraft identity differs.
var defaultConfigs = buildDefaultConfigs()

func buildDefaultConfigs() map[string]Config {
	products := []ProductSpec{
		{
			ProductID: "RVIRS", Sensor: "VIIRS", ShortName: "VIIRS-SCIENCE-RDR",
			TypeID: "SCIENCE", GranLen: 85_350_000,
			Apids: []ApidSpec{
				{Num: 826, Name: "VIIRS_SCIENCE", MaxExpected: 3200},
				{Num: 821, Name: "VIIRS_ENG", MaxExpected: 64},
			},
		},
		{
			ProductID: "RCRIS", Sensor: "CRIS", ShortName: "CRIS-SCIENCE-RDR",
			TypeID: "SCIENCE", GranLen: 31_997_000,
			Apids: []ApidSpec{
				{Num: 528, Name: "CRIS_SCIENCE", MaxExpected: 12},
			},
		},
		{
			ProductID: "RATMS", Sensor: "ATMS", ShortName: "ATMS-SCIENCE-RDR",
			TypeID: "SCIENCE", GranLen: 31_997_000,
			Apids: []ApidSpec{
				{Num: 515, Name: "ATMS_SCIENCE", MaxExpected: 3},
			},
		},
		{
			ProductID: "ROMPS", Sensor: "OMPS", ShortName: "OMPS-SCIENCE-RDR",
			TypeID: "SCIENCE", GranLen: 85_350_000,
			Apids: []ApidSpec{
				{Num: 560, Name: "OMPS_SCIENCE", MaxExpected: 100},
			},
		},
		{
			ProductID: "RNSCA", Sensor: "SPACECRAFT", ShortName: "SPACECRAFT-DIARY-RDR",
			TypeID: "DIARY", GranLen: 85_350_000,
			Apids: []ApidSpec{
				{Num: 0, Name: "DIARY_0", MaxExpected: 1},
			},
		},
	}

	rdrs := []RdrSpec{
		{Product: "RVIRS", PackedWith: []string{"RNSCA"}},
		{Product: "RCRIS"},
		{Product: "RATMS"},
		{Product: "ROMPS"},
	}

	mk := func(id, short, mission string) Config {
		return Config{
			Origin:      "ORIG",
			Mode:        "ops",
			Distributor: "DIST",
			Satellite: SatSpec{
				ID: id, ShortName: short, BaseTime: MissionBaseTimeIET, Mission: mission,
			},
			Products: products,
			Rdrs:     rdrs,
		}
	}

	return map[string]Config{
		"npp": mk("npp", "NPP", "JPSS"),
		"j01": mk("j01", "J01", "JPSS"),
		"j02": mk("j02", "J02", "JPSS"),
		"j03": mk("j03", "J03", "JPSS"),
		"j04": mk("j04", "J04", "JPSS"),
	}
}
